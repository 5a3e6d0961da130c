package services

import (
	"context"
	"io"
	"time"

	"valeservice/internal/events"
	"valeservice/internal/models"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/mock"
)

var (
	productCols = []string{"id", "tenant_id", "name", "sku", "price", "stock_quantity", "stock_minimum", "active", "created_at", "updated_at"}
	orderCols   = []string{"id", "tenant_id", "product_id", "request_id", "quantity", "total_amount", "status", "comment", "created_by", "created_at", "updated_at"}
	tenantCols  = []string{"id", "slug", "name", "email", "plan", "active", "is_default", "created_at", "updated_at"}
)

func productRows(id, tenantID uuid.UUID, price float64, stock int, active bool) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(productCols).
		AddRow(id, tenantID, "Tomato seeds", (*string)(nil), price, stock, 10, active, now, now)
}

func orderRows(id, tenantID, productID uuid.UUID, requestID string, quantity int, status string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(orderCols).
		AddRow(id, tenantID, productID, requestID, quantity, 2.5*float64(quantity), status, (*string)(nil), (*uuid.UUID)(nil), now, now)
}

func auditInsertRows(id int64) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id, time.Now())
}

// MockCacheService mocks caching.CacheService
type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetOrderByRequest(ctx context.Context, tenantID uuid.UUID, requestID string) (*models.Order, error) {
	args := m.Called(ctx, tenantID, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockCacheService) SetOrder(ctx context.Context, order *models.Order, ttl time.Duration) error {
	args := m.Called(ctx, order, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteOrder(ctx context.Context, tenantID uuid.UUID, requestID string) error {
	args := m.Called(ctx, tenantID, requestID)
	return args.Error(0)
}

func (m *MockCacheService) GetTenant(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockCacheService) SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error {
	args := m.Called(ctx, tenant, ttl)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockPublisher mocks events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderEvent(ctx context.Context, event events.OrderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockMinioService mocks MinioService
type MockMinioService struct {
	mock.Mock
}

func (m *MockMinioService) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, contentType string) error {
	data, _ := io.ReadAll(reader)
	args := m.Called(ctx, bucketName, objectName, string(data), objectSize, contentType)
	return args.Error(0)
}

func (m *MockMinioService) EnsureBucketExists(ctx context.Context, bucketName string) error {
	args := m.Called(ctx, bucketName)
	return args.Error(0)
}

// MockTenantService mocks TenantService
type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) EnsureDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantService) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantService) ListActiveTenants(ctx context.Context) ([]*models.Tenant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

func testNow() time.Time {
	return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
}
