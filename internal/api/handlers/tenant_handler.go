package handlers

import (
	"time"

	"knowledge-assistant/internal/dto"
	"knowledge-assistant/internal/repository"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type TenantHandler struct {
	tenantRepo *repository.TenantRepository
	logger     *zap.Logger
}

func NewTenantHandler(tenantRepo *repository.TenantRepository, logger *zap.Logger) *TenantHandler {
	return &TenantHandler{
		tenantRepo: tenantRepo,
		logger:     logger,
	}
}

// ListTenants returns the active tenants. Public: callers need a tenant
// ID before they can use the scoped API.
func (h *TenantHandler) ListTenants(c *fiber.Ctx) error {
	tenants, err := h.tenantRepo.ListActive(c.Context())
	if err != nil {
		h.logger.Error("Failed to list tenants", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list tenants",
		})
	}

	resp := make([]dto.TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		resp = append(resp, dto.TenantResponse{
			ID:        t.ID.String(),
			Name:      t.Name,
			IsActive:  t.IsActive,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		})
	}

	return c.JSON(resp)
}
