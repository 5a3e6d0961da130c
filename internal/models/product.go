package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultStockMinimum is the low-stock threshold assigned when none is given.
const DefaultStockMinimum = 10

type Product struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TenantID      uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name          string    `json:"name" db:"name"`
	SKU           *string   `json:"sku" db:"sku"`
	Price         float64   `json:"price" db:"price"`
	StockQuantity int       `json:"stock_quantity" db:"stock_quantity"`
	StockMinimum  int       `json:"stock_minimum" db:"stock_minimum"`
	Active        bool      `json:"active" db:"active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// ProductUpdate carries the mutable product fields. Nil fields are left as they are.
type ProductUpdate struct {
	Name          *string  `json:"name,omitempty"`
	SKU           *string  `json:"sku,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	StockQuantity *int     `json:"stock_quantity,omitempty"`
	StockMinimum  *int     `json:"stock_minimum,omitempty"`
}

// LowStockProduct is a product at or below its stock minimum.
type LowStockProduct struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	TenantSlug    string    `json:"tenant_slug"`
	ProductID     uuid.UUID `json:"product_id"`
	Name          string    `json:"name"`
	StockQuantity int       `json:"stock_quantity"`
	StockMinimum  int       `json:"stock_minimum"`
}

// Snapshot returns the audit representation of the product.
func (p *Product) Snapshot() JSONB {
	snap := JSONB{
		"id":             p.ID.String(),
		"name":           p.Name,
		"price":          p.Price,
		"stock_quantity": p.StockQuantity,
		"stock_minimum":  p.StockMinimum,
		"active":         p.Active,
	}
	if p.SKU != nil {
		snap["sku"] = *p.SKU
	}
	return snap
}
