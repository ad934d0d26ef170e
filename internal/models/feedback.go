package models

import (
	"time"

	"github.com/google/uuid"
)

type Feedback struct {
	ID        uuid.UUID `db:"id"`
	RequestID uuid.UUID `db:"request_id"`
	TenantID  uuid.UUID `db:"tenant_id"`
	Rating    int       `db:"rating"` // 1..5
	Comment   *string   `db:"comment"`
	CreatedAt time.Time `db:"created_at"`
}
