package handlers

import (
	"errors"
	"time"

	"knowledge-assistant/internal/dto"
	"knowledge-assistant/internal/models"
	"knowledge-assistant/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	docService *service.DocumentService
	logger     *zap.Logger
}

func NewDocumentHandler(docService *service.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
		logger:     logger,
	}
}

// IngestDocument accepts a text document, chunks and embeds it, and makes it
// searchable for the tenant.
func (h *DocumentHandler) IngestDocument(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tenant not resolved",
		})
	}

	var req dto.IngestDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	docType, ok := parseDocType(req.DocType)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document type",
		})
	}

	doc, chunks, err := h.docService.Ingest(c.Context(), tenantID, req.Title, req.Content, docType, req.Metadata)
	if err != nil {
		return h.docError(c, "Failed to ingest document", err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.IngestDocumentResponse{
		DocumentID: doc.ID.String(),
		Title:      doc.Title,
		ChunkCount: len(chunks),
		CreatedAt:  doc.CreatedAt.Format(time.RFC3339),
	})
}

func (h *DocumentHandler) ReingestDocument(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tenant not resolved",
		})
	}

	documentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID",
		})
	}

	var req dto.IngestDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	docType, ok := parseDocType(req.DocType)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document type",
		})
	}

	doc, chunks, err := h.docService.Reingest(c.Context(), tenantID, documentID, req.Title, req.Content, docType, req.Metadata)
	if err != nil {
		return h.docError(c, "Failed to reingest document", err)
	}

	return c.JSON(dto.IngestDocumentResponse{
		DocumentID: doc.ID.String(),
		Title:      doc.Title,
		ChunkCount: len(chunks),
		CreatedAt:  doc.CreatedAt.Format(time.RFC3339),
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tenant not resolved",
		})
	}

	docs, err := h.docService.List(c.Context(), tenantID)
	if err != nil {
		h.logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	resp := make([]dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, dto.DocumentResponse{
			ID:         d.Document.ID.String(),
			Title:      d.Document.Title,
			DocType:    string(d.Document.Type),
			ChunkCount: d.ChunkCount,
			CreatedAt:  d.Document.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  d.Document.UpdatedAt.Format(time.RFC3339),
		})
	}

	return c.JSON(resp)
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tenant not resolved",
		})
	}

	documentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID",
		})
	}

	if err := h.docService.Delete(c.Context(), tenantID, documentID); err != nil {
		return h.docError(c, "Failed to delete document", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ReembedDocuments refreshes embeddings for chunks built with an older
// embedding model.
func (h *DocumentHandler) ReembedDocuments(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tenant not resolved",
		})
	}

	count, err := h.docService.ReembedStale(c.Context(), tenantID)
	if err != nil {
		return h.docError(c, "Failed to reembed documents", err)
	}

	return c.JSON(dto.ReembedResponse{
		ReembeddedChunks: count,
		EmbeddingModel:   h.docService.EmbeddingModel(),
	})
}

func (h *DocumentHandler) docError(c *fiber.Ctx, msg string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrDocumentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	case errors.Is(err, service.ErrTenantNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tenant not found or inactive",
		})
	case errors.Is(err, service.ErrEmbeddingUnavailable):
		h.logger.Error(msg, zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Embedding provider unavailable",
		})
	default:
		h.logger.Error(msg, zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": msg,
		})
	}
}

func parseDocType(s string) (models.DocumentType, bool) {
	switch s {
	case string(models.DocumentTypeMarkdown):
		return models.DocumentTypeMarkdown, true
	case string(models.DocumentTypeText), "":
		return models.DocumentTypeText, true
	case string(models.DocumentTypePDF):
		return models.DocumentTypePDF, true
	default:
		return "", false
	}
}

func getTenantID(c *fiber.Ctx) (uuid.UUID, error) {
	tenantIDStr, ok := c.Locals("tenantID").(string)
	if !ok {
		return uuid.Nil, fiber.ErrBadRequest
	}

	tenantID, err := uuid.Parse(tenantIDStr)
	if err != nil {
		return uuid.Nil, err
	}

	return tenantID, nil
}
