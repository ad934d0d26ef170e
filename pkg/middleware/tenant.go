package middleware

import (
	"errors"

	"knowledge-assistant/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantMiddleware resolves the X-Tenant-ID header to an active tenant and
// stores its ID in the request context. Every route behind it is tenant-scoped.
func TenantMiddleware(tenantRepo *repository.TenantRepository, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("X-Tenant-ID")
		if header == "" {
			logger.Warn("Missing tenant header")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "X-Tenant-ID header required",
			})
		}

		tenantID, err := uuid.Parse(header)
		if err != nil {
			logger.Warn("Invalid tenant ID", zap.String("header", header))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid tenant ID",
			})
		}

		tenant, err := tenantRepo.GetActive(c.Context(), tenantID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Tenant not found or inactive",
				})
			}
			logger.Error("Failed to resolve tenant", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to resolve tenant",
			})
		}

		c.Locals("tenantID", tenant.ID.String())

		return c.Next()
	}
}
