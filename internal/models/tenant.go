package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTenantSlug is the slug of the tenant created at first initialization.
const DefaultTenantSlug = "default"

type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Slug      string    `json:"slug" db:"slug"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Plan      string    `json:"plan" db:"plan"`
	Active    bool      `json:"active" db:"active"`
	IsDefault bool      `json:"is_default" db:"is_default"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Scope is the resolved tenant and caller for one request. It is passed
// explicitly into every service call that reads or mutates tenant data.
type Scope struct {
	TenantID uuid.UUID
	UserID   *uuid.UUID
}
