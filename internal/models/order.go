package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses. An order is written as COMMITTED in the transaction that
// takes its stock, so no intermediate status is ever stored.
const (
	OrderStatusCommitted = "COMMITTED"
	OrderStatusCancelled = "CANCELLED"
)

// Order is a single stock-consuming event ("vale") against one product.
type Order struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	TenantID    uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	ProductID   uuid.UUID  `json:"product_id" db:"product_id"`
	RequestID   string     `json:"request_id" db:"request_id"`
	Quantity    int        `json:"quantity" db:"quantity"`
	TotalAmount float64    `json:"total_amount" db:"total_amount"`
	Status      string     `json:"status" db:"status"`
	Comment     *string    `json:"comment" db:"comment"`
	CreatedBy   *uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// OrderView is what callers get back from order admission and cancellation.
// Replayed is set when no new effect was applied because the request had
// already been processed.
type OrderView struct {
	Order    *Order `json:"order"`
	Replayed bool   `json:"replayed"`
}

// OrderFilter holds list criteria for orders.
type OrderFilter struct {
	Status    *string    `json:"status,omitempty"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	Limit     int        `json:"limit,omitempty"`  // default 100, max 1000
	Offset    int        `json:"offset,omitempty"`
}

// Snapshot returns the audit representation of the order.
func (o *Order) Snapshot() JSONB {
	snap := JSONB{
		"id":           o.ID.String(),
		"product_id":   o.ProductID.String(),
		"request_id":   o.RequestID,
		"quantity":     o.Quantity,
		"total_amount": o.TotalAmount,
		"status":       o.Status,
	}
	if o.Comment != nil {
		snap["comment"] = *o.Comment
	}
	return snap
}
