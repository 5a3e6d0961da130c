package repositories

import (
	"context"

	"valeservice/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ProductRepository interface {
	Create(ctx context.Context, q DBTX, product *models.Product) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Product, error)
	Update(ctx context.Context, q DBTX, product *models.Product) error
	SoftDelete(ctx context.Context, q DBTX, tenantID, id uuid.UUID) error

	// LockForUpdate takes the row lock on the product. Rows of other tenants
	// are invisible; inactive rows are skipped unless includeInactive is set.
	LockForUpdate(ctx context.Context, q DBTX, tenantID, id uuid.UUID, includeInactive bool) (*models.Product, error)
	// AdjustStock adds delta to stock_quantity and returns the new value.
	// The caller must hold the row lock.
	AdjustStock(ctx context.Context, q DBTX, tenantID, id uuid.UUID, delta int) (int, error)

	ListLowStock(ctx context.Context, limit int) ([]*models.LowStockProduct, error)
}

type productRepo struct {
	db DBTX
}

func NewProductRepo(db DBTX) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `id, tenant_id, name, sku, price, stock_quantity, stock_minimum, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(&product.ID, &product.TenantID, &product.Name, &product.SKU, &product.Price,
		&product.StockQuantity, &product.StockMinimum, &product.Active, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (r *productRepo) Create(ctx context.Context, q DBTX, product *models.Product) error {
	query := `
		INSERT INTO products (id, tenant_id, name, sku, price, stock_quantity, stock_minimum, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW(), NOW())
		RETURNING active, created_at, updated_at
	`
	return q.QueryRow(ctx, query, product.ID, product.TenantID, product.Name, product.SKU, product.Price,
		product.StockQuantity, product.StockMinimum).Scan(&product.Active, &product.CreatedAt, &product.UpdatedAt)
}

func (r *productRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE tenant_id = $1 AND id = $2 AND active = TRUE
	`
	return scanProduct(r.db.QueryRow(ctx, query, tenantID, id))
}

func (r *productRepo) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE tenant_id = $1 AND active = TRUE
		ORDER BY name
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (r *productRepo) Update(ctx context.Context, q DBTX, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, sku = $2, price = $3, stock_quantity = $4, stock_minimum = $5, updated_at = NOW()
		WHERE tenant_id = $6 AND id = $7 AND active = TRUE
		RETURNING updated_at
	`
	return q.QueryRow(ctx, query, product.Name, product.SKU, product.Price, product.StockQuantity,
		product.StockMinimum, product.TenantID, product.ID).Scan(&product.UpdatedAt)
}

func (r *productRepo) SoftDelete(ctx context.Context, q DBTX, tenantID, id uuid.UUID) error {
	query := `UPDATE products SET active = FALSE, updated_at = NOW() WHERE tenant_id = $1 AND id = $2 AND active = TRUE`
	tag, err := q.Exec(ctx, query, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *productRepo) LockForUpdate(ctx context.Context, q DBTX, tenantID, id uuid.UUID, includeInactive bool) (*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE tenant_id = $1 AND id = $2 AND (active = TRUE OR $3)
		FOR UPDATE
	`
	return scanProduct(q.QueryRow(ctx, query, tenantID, id, includeInactive))
}

func (r *productRepo) AdjustStock(ctx context.Context, q DBTX, tenantID, id uuid.UUID, delta int) (int, error) {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity + $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING stock_quantity
	`
	var stock int
	if err := q.QueryRow(ctx, query, tenantID, id, delta).Scan(&stock); err != nil {
		return 0, err
	}
	return stock, nil
}

// ListLowStock returns active products of active tenants whose stock is at or
// below their minimum, lowest stock first.
func (r *productRepo) ListLowStock(ctx context.Context, limit int) ([]*models.LowStockProduct, error) {
	query := `
		SELECT p.tenant_id, t.slug, p.id, p.name, p.stock_quantity, p.stock_minimum
		FROM products p
		JOIN tenants t ON t.id = p.tenant_id
		WHERE t.active = TRUE AND p.active = TRUE AND p.stock_quantity <= p.stock_minimum
		ORDER BY p.stock_quantity, p.name
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.LowStockProduct
	for rows.Next() {
		item := &models.LowStockProduct{}
		if err := rows.Scan(&item.TenantID, &item.TenantSlug, &item.ProductID, &item.Name, &item.StockQuantity, &item.StockMinimum); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
