package models

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusRefused   RequestStatus = "refused"
	RequestStatusError     RequestStatus = "error"
)

// Source is one cited chunk in an answer.
type Source struct {
	ChunkID        uuid.UUID `json:"chunk_id"`
	DocumentTitle  string    `json:"document_title"`
	RelevanceScore float64   `json:"relevance_score"`
	Excerpt        string    `json:"excerpt"`
}

// AIRequest is the append-only audit record of one question. It is
// created finalized and never updated afterward.
type AIRequest struct {
	ID               uuid.UUID     `db:"id"`
	TenantID         uuid.UUID     `db:"tenant_id"`
	Question         string        `db:"question"`
	Answer           *string       `db:"answer"`
	Sources          []Source      `db:"sources"`
	Status           RequestStatus `db:"status"`
	Confidence       *string       `db:"confidence"`
	RefusedReason    *string       `db:"refused_reason"`
	PromptTokens     int           `db:"prompt_tokens"`
	CompletionTokens int           `db:"completion_tokens"`
	TotalTokens      int           `db:"total_tokens"`
	ModelUsed        string        `db:"model_used"`
	LatencyMs        int           `db:"latency_ms"`
	Cached           bool          `db:"cached"`
	CreatedAt        time.Time     `db:"created_at"`
}
