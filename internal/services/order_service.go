package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"valeservice/internal/caching"
	"valeservice/internal/common"
	"valeservice/internal/events"
	"valeservice/internal/models"
	"valeservice/internal/repositories"
	"valeservice/internal/telemetry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultLockTimeout    = 5 * time.Second
	DefaultTxTimeout      = 10 * time.Second
	DefaultReplayCacheTTL = 10 * time.Minute

	postCommitTimeout = 2 * time.Second
	maxCommentLength  = 500
)

type OrderService interface {
	CreateOrder(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, productID uuid.UUID, quantity int, requestID string, comment *string) (*models.OrderView, error)
	CancelOrder(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID) (*models.OrderView, error)
	// UpdateComment replaces the free-text comment of an order and records the
	// change in the audit trail. Quantity, product and status never change here.
	UpdateComment(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID, comment *string) (*models.OrderView, error)
	GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*models.OrderView, error)
	ListOrders(ctx context.Context, tenantID uuid.UUID, filter models.OrderFilter) ([]*models.Order, error)
}

type OrderServiceConfig struct {
	LockTimeout    time.Duration
	TxTimeout      time.Duration
	ReplayCacheTTL time.Duration
}

type orderService struct {
	db          repositories.TxBeginner
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository

	guard *idempotencyGuard
	locks *stockLockManager
	audit *auditEmitter

	cache     caching.CacheService
	publisher events.Publisher
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
	config    OrderServiceConfig
}

func NewOrderService(db repositories.TxBeginner, orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository,
	auditRepo repositories.AuditLogsRepository, cache caching.CacheService, publisher events.Publisher,
	metrics *telemetry.Metrics, logger *zap.Logger, config OrderServiceConfig) OrderService {
	if cache == nil {
		cache = caching.NoopCache{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.LockTimeout <= 0 {
		config.LockTimeout = DefaultLockTimeout
	}
	if config.TxTimeout <= 0 {
		config.TxTimeout = DefaultTxTimeout
	}
	if config.ReplayCacheTTL <= 0 {
		config.ReplayCacheTTL = DefaultReplayCacheTTL
	}

	return &orderService{
		db:          db,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		guard:       newIdempotencyGuard(orderRepo, cache, logger),
		locks:       &stockLockManager{productRepo: productRepo},
		audit:       &auditEmitter{auditRepo: auditRepo},
		cache:       cache,
		publisher:   publisher,
		metrics:     metrics,
		tracer:      otel.Tracer("valeservice/services/order"),
		logger:      logger,
		config:      config,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, productID uuid.UUID, quantity int, requestID string, comment *string) (*models.OrderView, error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("tenant.id", tenantID.String()),
		attribute.String("product.id", productID.String()),
		attribute.String("order.request_id", requestID),
		attribute.Int("order.quantity", quantity),
	))
	defer span.End()

	view, err := s.createOrder(ctx, tenantID, userID, productID, quantity, requestID, comment)
	s.metrics.RecordAdmission(outcome(view, err), started)
	if err != nil {
		s.logFailure("create order", tenantID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Bool("order.replayed", view.Replayed), attribute.String("order.id", view.Order.ID.String()))
	span.SetStatus(codes.Ok, "")
	return view, nil
}

func (s *orderService) createOrder(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, productID uuid.UUID, quantity int, requestID string, comment *string) (*models.OrderView, error) {
	if err := validateCreateOrder(tenantID, productID, quantity, requestID, comment); err != nil {
		return nil, err
	}

	existing, err := s.guard.admit(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &models.OrderView{Order: existing, Replayed: true}, nil
	}

	order, err := s.admit(ctx, tenantID, userID, productID, quantity, requestID, comment)
	switch {
	case err == nil:
	case repositories.IsUniqueViolation(err, repositories.ConstraintOrdersTenantRequest):
		// a concurrent request with the same token committed first; our
		// transaction was rolled back, so report the winner as a replay
		winner, gerr := s.guard.admit(ctx, tenantID, requestID)
		if gerr != nil {
			return nil, gerr
		}
		if winner == nil {
			return nil, common.NewTransientError("create order", err)
		}
		s.logger.Info("duplicate request resolved by unique index",
			zap.String("tenant_id", tenantID.String()), zap.String("request_id", requestID))
		return &models.OrderView{Order: winner, Replayed: true}, nil
	case common.IsKind(err, common.KindInsufficientStock), common.IsKind(err, common.KindNotFound):
		// the lock wait may have been on a request carrying the same token
		// that has since committed and consumed the stock
		winner, gerr := s.guard.admit(ctx, tenantID, requestID)
		if gerr != nil {
			return nil, gerr
		}
		if winner == nil {
			return nil, err
		}
		s.logger.Info("duplicate request resolved after lock wait",
			zap.String("tenant_id", tenantID.String()), zap.String("request_id", requestID))
		return &models.OrderView{Order: winner, Replayed: true}, nil
	default:
		return nil, storageError("create order", err)
	}

	s.afterCommit(ctx, order, events.TypeOrderCommitted)
	return &models.OrderView{Order: order}, nil
}

func validateCreateOrder(tenantID, productID uuid.UUID, quantity int, requestID string, comment *string) error {
	if tenantID == uuid.Nil {
		return common.NewValidationError("tenant_id", "tenant_id is required")
	}
	if productID == uuid.Nil {
		return common.NewValidationError("product_id", "product_id is required")
	}
	if err := common.ValidatePositiveInteger(quantity, "quantity", common.MaxOrderQuantity); err != nil {
		return common.NewValidationError("quantity", err.Error())
	}
	if err := common.ValidateRequestID(requestID); err != nil {
		return common.NewValidationError("request_id", err.Error())
	}
	if err := common.ValidateOptionalString(comment, "comment", maxCommentLength); err != nil {
		return common.NewValidationError("comment", err.Error())
	}
	return nil
}

// admit runs the locked decrement, the order insert and both audit entries in
// one transaction.
func (s *orderService) admit(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, productID uuid.UUID, quantity int, requestID string, comment *string) (*models.Order, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.config.TxTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := setLockTimeout(txCtx, tx, s.config.LockTimeout); err != nil {
		return nil, err
	}

	product, err := s.locks.lockAndValidate(txCtx, tx, tenantID, productID, quantity)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).AddEvent("product locked", trace.WithAttributes(attribute.Int("product.stock", product.StockQuantity)))

	order, err := s.write(txCtx, tx, product, userID, quantity, requestID, comment)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, commitError("create order", err)
	}
	return order, nil
}

// write applies the decrement to a locked product and inserts the order.
func (s *orderService) write(ctx context.Context, tx repositories.DBTX, product *models.Product, userID *uuid.UUID, quantity int, requestID string, comment *string) (*models.Order, error) {
	newStock, err := s.productRepo.AdjustStock(ctx, tx, product.TenantID, product.ID, -quantity)
	if errors.Is(err, pgx.ErrNoRows) || repositories.IsCheckViolation(err, repositories.ConstraintProductsStock) {
		return nil, common.NewIntegrityError("create order", "stock update rejected on a locked product", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decrement stock: %w", err)
	}
	if newStock != product.StockQuantity-quantity {
		return nil, common.NewIntegrityError("create order",
			fmt.Sprintf("stock moved under lock: expected %d, got %d", product.StockQuantity-quantity, newStock), nil)
	}

	order := &models.Order{
		ID:          uuid.New(),
		TenantID:    product.TenantID,
		ProductID:   product.ID,
		RequestID:   requestID,
		Quantity:    quantity,
		TotalAmount: math.Round(product.Price*float64(quantity)*100) / 100,
		Status:      models.OrderStatusCommitted,
		Comment:     comment,
		CreatedBy:   userID,
	}
	if err := s.orderRepo.Insert(ctx, tx, order); err != nil {
		if repositories.IsForeignKeyViolation(err) {
			return nil, common.NewIntegrityError("create order", "order references a product outside its tenant", err)
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	if err := s.audit.record(ctx, tx, &models.AuditEntry{
		TenantID:     order.TenantID,
		UserID:       userID,
		Action:       models.ActionCreate,
		ResourceType: models.ResourceOrder,
		ResourceID:   order.ID.String(),
		AfterState:   order.Snapshot(),
		RequestID:    &order.RequestID,
	}); err != nil {
		return nil, err
	}
	if err := s.audit.recordStockChange(ctx, tx, userID, &order.RequestID, product, newStock, stockDecrease, quantity); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) CancelOrder(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID) (*models.OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(
		attribute.String("tenant.id", tenantID.String()),
		attribute.String("order.id", orderID.String()),
	))
	defer span.End()

	view, err := s.cancelOrder(ctx, tenantID, userID, orderID)
	s.metrics.RecordCancellation(outcome(view, err))
	if err != nil {
		s.logFailure("cancel order", tenantID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Bool("order.replayed", view.Replayed))
	span.SetStatus(codes.Ok, "")
	return view, nil
}

func (s *orderService) cancelOrder(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID) (*models.OrderView, error) {
	if tenantID == uuid.Nil || orderID == uuid.Nil {
		return nil, common.NewValidationError("id", "order id is required")
	}

	txCtx, cancel := context.WithTimeout(ctx, s.config.TxTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, pgx.TxOptions{})
	if err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := setLockTimeout(txCtx, tx, s.config.LockTimeout); err != nil {
		return nil, storageError("cancel order", err)
	}

	// order row first, then product row, same as the create path
	order, err := s.orderRepo.LockForUpdate(txCtx, tx, tenantID, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("cancel order", "order")
	}
	if err != nil {
		return nil, storageError("lock order", err)
	}

	switch order.Status {
	case models.OrderStatusCancelled:
		return &models.OrderView{Order: order, Replayed: true}, nil
	case models.OrderStatusCommitted:
	default:
		return nil, common.NewConflictError("cancel order", fmt.Sprintf("order in status %s cannot be cancelled", order.Status), nil)
	}

	product, err := s.productRepo.LockForUpdate(txCtx, tx, tenantID, order.ProductID, true)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewIntegrityError("cancel order", "order references a product that cannot be locked", err)
	}
	if err != nil {
		return nil, storageError("lock product", err)
	}

	newStock, err := s.productRepo.AdjustStock(txCtx, tx, tenantID, product.ID, order.Quantity)
	if err != nil {
		return nil, storageError("restore stock", err)
	}
	if newStock != product.StockQuantity+order.Quantity {
		return nil, common.NewIntegrityError("cancel order",
			fmt.Sprintf("stock moved under lock: expected %d, got %d", product.StockQuantity+order.Quantity, newStock), nil)
	}

	before := order.Snapshot()
	updatedAt, err := s.orderRepo.UpdateStatus(txCtx, tx, tenantID, order.ID, models.OrderStatusCancelled)
	if err != nil {
		return nil, storageError("update order status", err)
	}
	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = updatedAt

	if err := s.audit.record(txCtx, tx, &models.AuditEntry{
		TenantID:     tenantID,
		UserID:       userID,
		Action:       models.ActionUpdate,
		ResourceType: models.ResourceOrder,
		ResourceID:   order.ID.String(),
		BeforeState:  before,
		AfterState:   order.Snapshot(),
		RequestID:    &order.RequestID,
	}); err != nil {
		return nil, storageError("cancel order", err)
	}
	if err := s.audit.recordStockChange(txCtx, tx, userID, &order.RequestID, product, newStock, stockRestore, order.Quantity); err != nil {
		return nil, storageError("cancel order", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, commitError("cancel order", err)
	}

	s.afterCommit(ctx, order, events.TypeOrderCancelled)
	return &models.OrderView{Order: order}, nil
}

func (s *orderService) UpdateComment(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID, comment *string) (*models.OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateComment", trace.WithAttributes(
		attribute.String("tenant.id", tenantID.String()),
		attribute.String("order.id", orderID.String()),
	))
	defer span.End()

	view, err := s.updateComment(ctx, tenantID, userID, orderID, comment)
	if err != nil {
		s.logFailure("update order comment", tenantID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return view, nil
}

func (s *orderService) updateComment(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID, comment *string) (*models.OrderView, error) {
	if tenantID == uuid.Nil || orderID == uuid.Nil {
		return nil, common.NewValidationError("id", "order id is required")
	}
	if err := common.ValidateOptionalString(comment, "comment", maxCommentLength); err != nil {
		return nil, common.NewValidationError("comment", err.Error())
	}

	txCtx, cancel := context.WithTimeout(ctx, s.config.TxTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, pgx.TxOptions{})
	if err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := setLockTimeout(txCtx, tx, s.config.LockTimeout); err != nil {
		return nil, storageError("update order comment", err)
	}

	order, err := s.orderRepo.LockForUpdate(txCtx, tx, tenantID, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("update order comment", "order")
	}
	if err != nil {
		return nil, storageError("lock order", err)
	}

	before := order.Snapshot()
	updatedAt, err := s.orderRepo.UpdateComment(txCtx, tx, tenantID, order.ID, comment)
	if err != nil {
		return nil, storageError("update order comment", err)
	}
	order.Comment = comment
	order.UpdatedAt = updatedAt

	if err := s.audit.record(txCtx, tx, &models.AuditEntry{
		TenantID:     tenantID,
		UserID:       userID,
		Action:       models.ActionUpdate,
		ResourceType: models.ResourceOrder,
		ResourceID:   order.ID.String(),
		BeforeState:  before,
		AfterState:   order.Snapshot(),
		RequestID:    &order.RequestID,
	}); err != nil {
		return nil, storageError("update order comment", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, commitError("update order comment", err)
	}

	s.afterCommit(ctx, order, events.TypeOrderUpdated)
	return &models.OrderView{Order: order}, nil
}

func (s *orderService) GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*models.OrderView, error) {
	order, err := s.orderRepo.GetByID(ctx, tenantID, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("get order", "order")
	}
	if err != nil {
		return nil, storageError("get order", err)
	}
	return &models.OrderView{Order: order}, nil
}

func (s *orderService) ListOrders(ctx context.Context, tenantID uuid.UUID, filter models.OrderFilter) ([]*models.Order, error) {
	if filter.Status != nil && *filter.Status != models.OrderStatusCommitted && *filter.Status != models.OrderStatusCancelled {
		return nil, common.NewValidationError("status", "status must be COMMITTED or CANCELLED")
	}
	limit, offset, err := common.ValidatePaginationParams(filter.Limit, filter.Offset)
	if err != nil {
		return nil, common.NewValidationError("offset", err.Error())
	}
	filter.Limit, filter.Offset = limit, offset

	orders, err := s.orderRepo.List(ctx, tenantID, &filter)
	if err != nil {
		return nil, storageError("list orders", err)
	}
	return orders, nil
}

// afterCommit refreshes the replay cache and publishes the order event. Its
// failures are logged and never change the result of the committed call.
func (s *orderService) afterCommit(ctx context.Context, order *models.Order, eventType string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()

	if err := s.cache.SetOrder(ctx, order, s.config.ReplayCacheTTL); err != nil {
		s.logger.Warn("failed to cache order for replay", zap.String("order_id", order.ID.String()), zap.Error(err))
		_ = s.cache.DeleteOrder(ctx, order.TenantID, order.RequestID)
	}
	if err := s.publisher.PublishOrderEvent(ctx, events.NewOrderEvent(eventType, order)); err != nil {
		s.logger.Warn("failed to publish order event", zap.String("order_id", order.ID.String()), zap.String("type", eventType), zap.Error(err))
	}
}

func (s *orderService) logFailure(op string, tenantID uuid.UUID, err error) {
	switch common.KindOf(err) {
	case common.KindNotFound:
		// ids are only resolved inside the caller's tenant, so a miss may be another tenant's row
		s.logger.Warn(op+" referenced an id outside the tenant", zap.String("tenant_id", tenantID.String()), zap.Error(err))
	case common.KindValidation, common.KindInsufficientStock, common.KindConflict:
		s.logger.Debug(op+" rejected", zap.String("tenant_id", tenantID.String()), zap.Error(err))
	case common.KindTransient:
		s.logger.Warn(op+" failed transiently", zap.String("tenant_id", tenantID.String()),
			zap.Bool("lock_timeout", repositories.IsLockTimeout(err)), zap.Error(err))
	default:
		s.logger.Error(op+" failed", zap.String("tenant_id", tenantID.String()), zap.Error(err), zap.Stack("stack"))
	}
}

func outcome(view *models.OrderView, err error) string {
	if err != nil {
		return common.KindOf(err).String()
	}
	if view.Replayed {
		return "replayed"
	}
	return "applied"
}
