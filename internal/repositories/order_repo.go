package repositories

import (
	"context"
	"fmt"
	"time"

	"valeservice/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type OrderRepository interface {
	// FindByRequestID looks up the order admitted for an idempotency token
	// within one tenant. A miss returns pgx.ErrNoRows.
	FindByRequestID(ctx context.Context, tenantID uuid.UUID, requestID string) (*models.Order, error)
	Insert(ctx context.Context, q DBTX, order *models.Order) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error)
	LockForUpdate(ctx context.Context, q DBTX, tenantID, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, q DBTX, tenantID, id uuid.UUID, status string) (time.Time, error)
	UpdateComment(ctx context.Context, q DBTX, tenantID, id uuid.UUID, comment *string) (time.Time, error)
	List(ctx context.Context, tenantID uuid.UUID, filter *models.OrderFilter) ([]*models.Order, error)
}

type orderRepo struct {
	db DBTX
}

func NewOrderRepo(db DBTX) OrderRepository {
	return &orderRepo{db: db}
}

const orderColumns = `id, tenant_id, product_id, request_id, quantity, total_amount, status, comment, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(&order.ID, &order.TenantID, &order.ProductID, &order.RequestID, &order.Quantity,
		&order.TotalAmount, &order.Status, &order.Comment, &order.CreatedBy, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) FindByRequestID(ctx context.Context, tenantID uuid.UUID, requestID string) (*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE tenant_id = $1 AND request_id = $2
	`
	return scanOrder(r.db.QueryRow(ctx, query, tenantID, requestID))
}

func (r *orderRepo) Insert(ctx context.Context, q DBTX, order *models.Order) error {
	query := `
		INSERT INTO orders (id, tenant_id, product_id, request_id, quantity, total_amount, status, comment, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return q.QueryRow(ctx, query, order.ID, order.TenantID, order.ProductID, order.RequestID, order.Quantity,
		order.TotalAmount, order.Status, order.Comment, order.CreatedBy).Scan(&order.CreatedAt, &order.UpdatedAt)
}

func (r *orderRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE tenant_id = $1 AND id = $2
	`
	return scanOrder(r.db.QueryRow(ctx, query, tenantID, id))
}

func (r *orderRepo) LockForUpdate(ctx context.Context, q DBTX, tenantID, id uuid.UUID) (*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE
	`
	return scanOrder(q.QueryRow(ctx, query, tenantID, id))
}

func (r *orderRepo) UpdateStatus(ctx context.Context, q DBTX, tenantID, id uuid.UUID, status string) (time.Time, error) {
	query := `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at
	`
	var updatedAt time.Time
	if err := q.QueryRow(ctx, query, tenantID, id, status).Scan(&updatedAt); err != nil {
		return time.Time{}, err
	}
	return updatedAt, nil
}

func (r *orderRepo) UpdateComment(ctx context.Context, q DBTX, tenantID, id uuid.UUID, comment *string) (time.Time, error) {
	query := `
		UPDATE orders
		SET comment = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at
	`
	var updatedAt time.Time
	if err := q.QueryRow(ctx, query, tenantID, id, comment).Scan(&updatedAt); err != nil {
		return time.Time{}, err
	}
	return updatedAt, nil
}

func (r *orderRepo) List(ctx context.Context, tenantID uuid.UUID, filter *models.OrderFilter) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE tenant_id = $1
	`
	args := []interface{}{tenantID}
	conditionCount := 1

	if filter.Status != nil {
		conditionCount++
		query += fmt.Sprintf(` AND status = $%d`, conditionCount)
		args = append(args, *filter.Status)
	}
	if filter.ProductID != nil {
		conditionCount++
		query += fmt.Sprintf(` AND product_id = $%d`, conditionCount)
		args = append(args, *filter.ProductID)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, conditionCount+1, conditionCount+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
