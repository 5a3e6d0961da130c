package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"valeservice/internal/common"
	"valeservice/internal/models"
	"valeservice/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	maxProductNameLength = 200
	maxSKULength         = 64
)

type ProductService interface {
	CreateProduct(ctx context.Context, scope models.Scope, req *CreateProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Product, error)
	UpdateProduct(ctx context.Context, scope models.Scope, id uuid.UUID, update *models.ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, scope models.Scope, id uuid.UUID) error
}

type CreateProductRequest struct {
	Name          string  `json:"name"`
	SKU           *string `json:"sku"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stock_quantity"`
	StockMinimum  *int    `json:"stock_minimum"`
}

type productService struct {
	db          repositories.TxBeginner
	productRepo repositories.ProductRepository
	audit       *auditEmitter
	lockTimeout time.Duration
	logger      *zap.Logger
}

func NewProductService(db repositories.TxBeginner, productRepo repositories.ProductRepository, auditRepo repositories.AuditLogsRepository, lockTimeout time.Duration, logger *zap.Logger) ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &productService{
		db:          db,
		productRepo: productRepo,
		audit:       &auditEmitter{auditRepo: auditRepo},
		lockTimeout: lockTimeout,
		logger:      logger,
	}
}

func validateProduct(product *models.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	if err := common.ValidateRequiredString(product.Name, "name"); err != nil {
		return common.NewValidationError("name", err.Error())
	}
	if len(product.Name) > maxProductNameLength {
		return common.NewValidationError("name", fmt.Sprintf("name cannot exceed %d characters", maxProductNameLength))
	}
	if err := common.ValidateOptionalString(product.SKU, "sku", maxSKULength); err != nil {
		return common.NewValidationError("sku", err.Error())
	}
	if product.SKU != nil && *product.SKU == "" {
		product.SKU = nil
	}
	if product.Price < 0 {
		return common.NewValidationError("price", "price cannot be negative")
	}
	if err := common.ValidateNonNegativeInteger(product.StockQuantity, "stock_quantity"); err != nil {
		return common.NewValidationError("stock_quantity", err.Error())
	}
	if err := common.ValidateNonNegativeInteger(product.StockMinimum, "stock_minimum"); err != nil {
		return common.NewValidationError("stock_minimum", err.Error())
	}
	return nil
}

// productWriteError maps constraint violations of product writes.
func productWriteError(op string, err error) error {
	if repositories.IsUniqueViolation(err, repositories.ConstraintProductsTenantName) {
		return common.NewConflictError(op, "a product with this name already exists", err)
	}
	return storageError(op, err)
}

func (s *productService) CreateProduct(ctx context.Context, scope models.Scope, req *CreateProductRequest) (*models.Product, error) {
	product := &models.Product{
		ID:            uuid.New(),
		TenantID:      scope.TenantID,
		Name:          req.Name,
		SKU:           req.SKU,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		StockMinimum:  models.DefaultStockMinimum,
	}
	if req.StockMinimum != nil {
		product.StockMinimum = *req.StockMinimum
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.productRepo.Create(ctx, tx, product); err != nil {
		return nil, productWriteError("create product", err)
	}
	if err := s.audit.record(ctx, tx, &models.AuditEntry{
		TenantID:     scope.TenantID,
		UserID:       scope.UserID,
		Action:       models.ActionCreate,
		ResourceType: models.ResourceProduct,
		ResourceID:   product.ID.String(),
		AfterState:   product.Snapshot(),
	}); err != nil {
		return nil, storageError("create product", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, commitError("create product", err)
	}

	s.logger.Info("product created", zap.String("tenant_id", scope.TenantID.String()), zap.String("product_id", product.ID.String()))
	return product, nil
}

func (s *productService) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*models.Product, error) {
	product, err := s.productRepo.GetByID(ctx, tenantID, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("get product", "product")
	}
	if err != nil {
		return nil, storageError("get product", err)
	}
	return product, nil
}

func (s *productService) ListProducts(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Product, error) {
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return nil, common.NewValidationError("offset", err.Error())
	}
	products, err := s.productRepo.List(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, storageError("list products", err)
	}
	return products, nil
}

// UpdateProduct locks the row so a stock edit serializes with concurrent
// order admissions.
func (s *productService) UpdateProduct(ctx context.Context, scope models.Scope, id uuid.UUID, update *models.ProductUpdate) (*models.Product, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := setLockTimeout(ctx, tx, s.lockTimeout); err != nil {
		return nil, storageError("update product", err)
	}

	current, err := s.productRepo.LockForUpdate(ctx, tx, scope.TenantID, id, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("update product", "product")
	}
	if err != nil {
		return nil, storageError("lock product", err)
	}

	updated := *current
	if update.Name != nil {
		updated.Name = *update.Name
	}
	if update.SKU != nil {
		updated.SKU = update.SKU
	}
	if update.Price != nil {
		updated.Price = *update.Price
	}
	if update.StockQuantity != nil {
		updated.StockQuantity = *update.StockQuantity
	}
	if update.StockMinimum != nil {
		updated.StockMinimum = *update.StockMinimum
	}
	if err := validateProduct(&updated); err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(ctx, tx, &updated); err != nil {
		return nil, productWriteError("update product", err)
	}

	afterState := updated.Snapshot()
	if updated.StockQuantity != current.StockQuantity {
		afterState["details"] = map[string]interface{}{
			"action":    stockAdjust,
			"quantity":  updated.StockQuantity - current.StockQuantity,
			"new_stock": updated.StockQuantity,
		}
	}
	if err := s.audit.record(ctx, tx, &models.AuditEntry{
		TenantID:     scope.TenantID,
		UserID:       scope.UserID,
		Action:       models.ActionUpdate,
		ResourceType: models.ResourceProduct,
		ResourceID:   id.String(),
		BeforeState:  current.Snapshot(),
		AfterState:   afterState,
	}); err != nil {
		return nil, storageError("update product", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, commitError("update product", err)
	}
	return &updated, nil
}

// DeleteProduct deactivates the product. Existing orders keep referencing it
// and may still be cancelled.
func (s *productService) DeleteProduct(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := setLockTimeout(ctx, tx, s.lockTimeout); err != nil {
		return storageError("delete product", err)
	}

	current, err := s.productRepo.LockForUpdate(ctx, tx, scope.TenantID, id, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewNotFoundError("delete product", "product")
	}
	if err != nil {
		return storageError("lock product", err)
	}

	if err := s.productRepo.SoftDelete(ctx, tx, scope.TenantID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NewIntegrityError("delete product", "locked product could not be deactivated", err)
		}
		return storageError("delete product", err)
	}

	deleted := *current
	deleted.Active = false
	if err := s.audit.record(ctx, tx, &models.AuditEntry{
		TenantID:     scope.TenantID,
		UserID:       scope.UserID,
		Action:       models.ActionDelete,
		ResourceType: models.ResourceProduct,
		ResourceID:   id.String(),
		BeforeState:  current.Snapshot(),
		AfterState:   deleted.Snapshot(),
	}); err != nil {
		return storageError("delete product", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return commitError("delete product", err)
	}
	return nil
}
