package models

import (
	"time"

	"github.com/google/uuid"
)

type DocumentType string

const (
	DocumentTypeMarkdown DocumentType = "markdown"
	DocumentTypeText     DocumentType = "text"
	DocumentTypePDF      DocumentType = "pdf"
)

type Document struct {
	ID        uuid.UUID    `db:"id"`
	TenantID  uuid.UUID    `db:"tenant_id"`
	Title     string       `db:"title"`
	Content   string       `db:"content"`
	Type      DocumentType `db:"doc_type"`
	Metadata  string       `db:"metadata"` // JSON with free-form document attributes
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}
