package main

import (
	"context"
	"errors"
	"log"
	"time"

	"knowledge-assistant/internal/models"
	"knowledge-assistant/internal/repository"
	"knowledge-assistant/internal/service"
	"knowledge-assistant/pkg/config"
	"knowledge-assistant/pkg/logger"
	"knowledge-assistant/pkg/postgres"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fixed so repeated seeding targets the same tenant.
var demoTenantID = uuid.MustParse("9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d")

type seedDocument struct {
	title   string
	docType models.DocumentType
	content string
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	// Connect to database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	tenantRepo := repository.NewTenantRepository(db, appLogger)
	docRepo := repository.NewDocumentRepository(db, appLogger)
	chunkRepo := repository.NewChunkRepository(db, appLogger)

	embedder, err := service.NewEmbedder(&cfg.Embedding, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize embedder", zap.Error(err))
	}

	cacheService := service.NewCacheService(service.NewMemoryKV(), cfg.Cache.TTL, appLogger)
	chunker := service.NewChunker(cfg.RAG.MaxChunkTokens)
	docService := service.NewDocumentService(docRepo, chunkRepo, tenantRepo, chunker, embedder, cacheService, appLogger)

	appLogger.Info("Starting database seeding...")

	// Demo tenant
	now := time.Now().UTC()
	tenant := &models.Tenant{
		ID:        demoTenantID,
		Name:      "Acme Corp",
		Slug:      "acme-corp",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := tenantRepo.GetActive(ctx, tenant.ID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			appLogger.Fatal("Failed to check demo tenant", zap.Error(err))
		}
		if err := tenantRepo.Create(ctx, tenant); err != nil {
			appLogger.Fatal("Failed to create demo tenant", zap.Error(err))
		}
		appLogger.Info("Created demo tenant", zap.String("tenant_id", tenant.ID.String()))
	} else {
		appLogger.Info("Demo tenant already exists", zap.String("tenant_id", tenant.ID.String()))
	}

	existing, err := docService.List(ctx, tenant.ID)
	if err != nil {
		appLogger.Fatal("Failed to list documents", zap.Error(err))
	}
	seeded := make(map[string]bool, len(existing))
	for _, d := range existing {
		seeded[d.Document.Title] = true
	}

	for _, doc := range seedDocuments() {
		if seeded[doc.title] {
			appLogger.Info("Document already seeded", zap.String("title", doc.title))
			continue
		}

		created, chunks, err := docService.Ingest(ctx, tenant.ID, doc.title, doc.content, doc.docType, nil)
		if err != nil {
			appLogger.Fatal("Failed to seed document", zap.String("title", doc.title), zap.Error(err))
		}
		appLogger.Info("Seeded document",
			zap.String("title", created.Title),
			zap.Int("chunks", len(chunks)),
		)
	}

	appLogger.Info("Seeding complete")
}

func seedDocuments() []seedDocument {
	return []seedDocument{
		{
			title:   "Leave Policy",
			docType: models.DocumentTypeMarkdown,
			content: `# Leave Policy

## Annual Leave

All full-time employees accrue 25 days of paid annual leave per calendar year. Leave accrues monthly and unused days carry over up to a maximum of 5 days into the next year. Carried-over days expire on March 31.

## Requesting Leave

Leave requests must be submitted through the HR portal at least two weeks in advance for absences longer than three days. Your manager approves or declines requests within five business days.

## Sick Leave

Employees are entitled to 10 paid sick days per year. A doctor's note is required for absences longer than three consecutive days. Unused sick days do not carry over.

## Parental Leave

Primary caregivers receive 16 weeks of fully paid parental leave. Secondary caregivers receive 4 weeks. Parental leave may be taken within the first 12 months after birth or adoption.`,
		},
		{
			title:   "Remote Work Policy",
			docType: models.DocumentTypeMarkdown,
			content: `# Remote Work Policy

## Eligibility

Employees may work remotely up to three days per week after completing their probation period. Fully remote arrangements require written approval from a department head.

## Equipment

The company provides a laptop and a one-time home office stipend of 500 EUR. Additional equipment requests go through the IT service desk.

## Availability

Remote employees must be reachable during core hours, 10:00 to 16:00 local time, and keep their calendar up to date. Team meetings take precedence over focus blocks.

## Security

Work must be done on company-managed devices connected through the corporate VPN. Public Wi-Fi may only be used with the VPN active. Company data must never be stored on personal devices.`,
		},
		{
			title:   "Expense Reimbursement Policy",
			docType: models.DocumentTypeMarkdown,
			content: `# Expense Reimbursement Policy

## General Rules

Business expenses are reimbursed when they are reasonable, documented with receipts, and submitted within 30 days of being incurred. Claims are filed in the expense tool and approved by your manager.

## Travel

Economy class is the default for flights under six hours. Hotel bookings should not exceed 180 EUR per night in standard locations. Meals during business travel are reimbursed up to 60 EUR per day.

## Non-reimbursable

Personal entertainment, minibar charges, traffic fines, and expenses without a receipt are not reimbursed. Alcohol is only reimbursable as part of documented client entertainment.`,
		},
		{
			title:   "IT Security Guidelines",
			docType: models.DocumentTypeText,
			content: `Passwords must be at least 14 characters and unique per system. The company password manager is mandatory for storing credentials. Multi-factor authentication is required on all external-facing services.

Phishing attempts must be reported to the security team within one hour of discovery using the report button in the mail client. Do not forward suspicious messages to colleagues.

Software may only be installed from the approved catalog. Requests for new tools go through the IT service desk and are reviewed within three business days.

Lost or stolen devices must be reported immediately so they can be remotely wiped. Screens lock automatically after five minutes of inactivity; do not disable this.`,
		},
	}
}
