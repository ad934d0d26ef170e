package api

import (
	"knowledge-assistant/internal/api/handlers"
	"knowledge-assistant/internal/repository"
	"knowledge-assistant/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func SetupRouter(
	queryHandler *handlers.QueryHandler,
	docHandler *handlers.DocumentHandler,
	tenantHandler *handlers.TenantHandler,
	tenantRepo *repository.TenantRepository,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Tenant-ID",
	}))
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Public routes
	app.Get("/api/v1/tenants", tenantHandler.ListTenants)

	// Tenant-scoped routes
	scoped := app.Group("/api/v1", middleware.TenantMiddleware(tenantRepo, appLogger))

	scoped.Post("/ask", queryHandler.Ask)

	requests := scoped.Group("/requests")
	requests.Get("", queryHandler.ListRequests)
	requests.Get("/:id", queryHandler.GetRequest)
	requests.Post("/:id/feedback", queryHandler.RecordFeedback)

	documents := scoped.Group("/documents")
	documents.Post("", docHandler.IngestDocument)
	documents.Get("", docHandler.ListDocuments)
	documents.Put("/:id", docHandler.ReingestDocument)
	documents.Delete("/:id", docHandler.DeleteDocument)
	documents.Post("/reembed", docHandler.ReembedDocuments)

	return app
}
