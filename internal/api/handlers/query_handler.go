package handlers

import (
	"errors"
	"time"

	"knowledge-assistant/internal/dto"
	"knowledge-assistant/internal/models"
	"knowledge-assistant/internal/repository"
	"knowledge-assistant/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type QueryHandler struct {
	queryService    *service.QueryService
	feedbackService *service.FeedbackService
	requestRepo     *repository.RequestRepository
	logger          *zap.Logger
}

func NewQueryHandler(
	queryService *service.QueryService,
	feedbackService *service.FeedbackService,
	requestRepo *repository.RequestRepository,
	logger *zap.Logger,
) *QueryHandler {
	return &QueryHandler{
		queryService:    queryService,
		feedbackService: feedbackService,
		requestRepo:     requestRepo,
		logger:          logger,
	}
}

// Ask answers a question against the tenant's knowledge base.
func (h *QueryHandler) Ask(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tenant not resolved",
		})
	}

	var req dto.AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.queryService.Ask(c.Context(), tenantID, req.Question)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("Failed to answer question", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to answer question",
		})
	}

	return c.JSON(toAskResponse(result))
}

// GetRequest returns one audit record, tenant-scoped.
func (h *QueryHandler) GetRequest(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tenant not resolved",
		})
	}

	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request ID",
		})
	}

	req, err := h.requestRepo.GetByID(c.Context(), tenantID, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Request not found",
			})
		}
		h.logger.Error("Failed to get request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get request",
		})
	}

	return c.JSON(toAskResponse(req))
}

// ListRequests returns the tenant's question history, newest first.
func (h *QueryHandler) ListRequests(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tenant not resolved",
		})
	}

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	requests, err := h.requestRepo.ListByTenant(c.Context(), tenantID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list requests", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list requests",
		})
	}

	resp := make([]dto.RequestSummary, 0, len(requests))
	for _, r := range requests {
		resp = append(resp, dto.RequestSummary{
			ID:          r.ID.String(),
			Question:    r.Question,
			Status:      string(r.Status),
			Cached:      r.Cached,
			ModelUsed:   r.ModelUsed,
			TotalTokens: r.TotalTokens,
			LatencyMs:   r.LatencyMs,
			CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		})
	}

	return c.JSON(resp)
}

// RecordFeedback attaches a user rating to an answered request.
func (h *QueryHandler) RecordFeedback(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tenant not resolved",
		})
	}

	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request ID",
		})
	}

	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	fb, err := h.feedbackService.Record(c.Context(), tenantID, requestID, req.Rating, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, service.ErrRequestNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Request not found",
			})
		default:
			h.logger.Error("Failed to record feedback", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to record feedback",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(dto.FeedbackResponse{
		ID:        fb.ID.String(),
		RequestID: fb.RequestID.String(),
		Rating:    fb.Rating,
		CreatedAt: fb.CreatedAt.Format(time.RFC3339),
	})
}

func toAskResponse(req *models.AIRequest) dto.AskResponse {
	answer := ""
	if req.Answer != nil {
		answer = *req.Answer
	}

	sources := make([]dto.SourceResponse, 0, len(req.Sources))
	for _, s := range req.Sources {
		sources = append(sources, dto.SourceResponse{
			ChunkID:        s.ChunkID.String(),
			DocumentTitle:  s.DocumentTitle,
			RelevanceScore: s.RelevanceScore,
			Excerpt:        s.Excerpt,
		})
	}

	return dto.AskResponse{
		RequestID:     req.ID.String(),
		Question:      req.Question,
		Answer:        answer,
		Sources:       sources,
		Status:        string(req.Status),
		Confidence:    req.Confidence,
		RefusedReason: req.RefusedReason,
		Cached:        req.Cached,
		ModelUsed:     req.ModelUsed,
		LatencyMs:     req.LatencyMs,
		TokenUsage: dto.TokenUsage{
			PromptTokens:     req.PromptTokens,
			CompletionTokens: req.CompletionTokens,
			TotalTokens:      req.TotalTokens,
		},
	}
}
