package services

import (
	"context"
	"errors"

	"valeservice/internal/common"
	"valeservice/internal/models"
	"valeservice/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type stockLockManager struct {
	productRepo repositories.ProductRepository
}

// lockAndValidate takes the row lock on an active product of the tenant and
// checks it can cover quantity. The returned snapshot is read after the lock
// was granted.
func (m *stockLockManager) lockAndValidate(ctx context.Context, tx repositories.DBTX, tenantID, productID uuid.UUID, quantity int) (*models.Product, error) {
	if quantity <= 0 {
		return nil, common.NewValidationError("quantity", "quantity must be positive")
	}

	product, err := m.productRepo.LockForUpdate(ctx, tx, tenantID, productID, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("lock product", "product")
	}
	if err != nil {
		return nil, storageError("lock product", err)
	}

	if product.StockQuantity < quantity {
		return nil, common.NewInsufficientStockError("lock product", product.StockQuantity, quantity)
	}
	return product, nil
}
