package service

import (
	"context"
	"testing"

	"knowledge-assistant/internal/models"
	"knowledge-assistant/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

type fakeRequestReader struct {
	requests map[uuid.UUID]*models.AIRequest
}

func (f *fakeRequestReader) GetByID(_ context.Context, tenantID, id uuid.UUID) (*models.AIRequest, error) {
	req, ok := f.requests[id]
	if !ok || req.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return req, nil
}

type fakeFeedbackStore struct {
	saved []*models.Feedback
}

func (f *fakeFeedbackStore) Create(_ context.Context, fb *models.Feedback) error {
	f.saved = append(f.saved, fb)
	return nil
}

func newFeedbackFixture() (*FeedbackService, *fakeFeedbackStore, *models.AIRequest) {
	req := &models.AIRequest{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Status:   models.RequestStatusCompleted,
	}
	reader := &fakeRequestReader{requests: map[uuid.UUID]*models.AIRequest{req.ID: req}}
	store := &fakeFeedbackStore{}
	return NewFeedbackService(store, reader, zap.NewNop()), store, req
}

func TestRecordFeedback(t *testing.T) {
	svc, store, req := newFeedbackFixture()
	comment := "answer matched the policy"

	fb, err := svc.Record(context.Background(), req.TenantID, req.ID, 5, &comment)
	require.NoError(t, err)

	assert.Equal(t, req.ID, fb.RequestID)
	assert.Equal(t, req.TenantID, fb.TenantID)
	assert.Equal(t, 5, fb.Rating)
	require.NotNil(t, fb.Comment)
	assert.Equal(t, comment, *fb.Comment)
	assert.Len(t, store.saved, 1)
}

func TestRecordFeedbackRatingBounds(t *testing.T) {
	svc, store, req := newFeedbackFixture()
	ctx := context.Background()

	for _, rating := range []int{0, -1, 6} {
		_, err := svc.Record(ctx, req.TenantID, req.ID, rating, nil)
		assert.ErrorIs(t, err, ErrInvalidInput, "rating %d", rating)
	}
	assert.Empty(t, store.saved)
}

func TestRecordFeedbackIsTenantScoped(t *testing.T) {
	svc, store, req := newFeedbackFixture()

	_, err := svc.Record(context.Background(), uuid.New(), req.ID, 4, nil)
	assert.ErrorIs(t, err, ErrRequestNotFound)
	assert.Empty(t, store.saved)
}

func TestRecordFeedbackUnknownRequest(t *testing.T) {
	svc, _, req := newFeedbackFixture()

	_, err := svc.Record(context.Background(), req.TenantID, uuid.New(), 3, nil)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}
