package models

import (
	"time"

	"github.com/google/uuid"
)

// JSONB represents a PostgreSQL JSONB document
type JSONB map[string]interface{}

// AuditEntry is an immutable record of one mutation. Rows are only ever inserted.
type AuditEntry struct {
	ID           int64      `json:"id" db:"id"`
	TenantID     uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	UserID       *uuid.UUID `json:"user_id" db:"user_id"`
	Action       string     `json:"action" db:"action"`
	ResourceType string     `json:"resource_type" db:"resource_type"`
	ResourceID   string     `json:"resource_id" db:"resource_id"`
	BeforeState  JSONB      `json:"before_state" db:"before_state"`
	AfterState   JSONB      `json:"after_state" db:"after_state"`
	RequestID    *string    `json:"request_id" db:"request_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Action constants for audit entries
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Resource types recorded in audit entries
const (
	ResourceOrder   = "order"
	ResourceProduct = "product"
	ResourceTenant  = "tenant"
)

// AuditFilter narrows audit entry listings
type AuditFilter struct {
	ResourceType string
	ResourceID   string
	Limit        int
	Offset       int
}
