package jobs

import (
	"context"
	"errors"
	"testing"

	"valeservice/internal/models"
	"valeservice/internal/telemetry"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// MockLowStockSource mocks the product repository's low stock query
type MockLowStockSource struct {
	mock.Mock
}

func (m *MockLowStockSource) ListLowStock(ctx context.Context, limit int) ([]*models.LowStockProduct, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LowStockProduct), args.Error(1)
}

type InventoryAlertServiceTestSuite struct {
	suite.Suite
	source  *MockLowStockSource
	metrics *telemetry.Metrics
	logs    *observer.ObservedLogs
	service *InventoryAlertService
}

func (suite *InventoryAlertServiceTestSuite) SetupTest() {
	core, logs := observer.New(zap.DebugLevel)
	suite.source = new(MockLowStockSource)
	suite.metrics = telemetry.NewMetrics("test")
	suite.logs = logs
	suite.service = NewInventoryAlertService(suite.source, suite.metrics, zap.New(core))
}

func (suite *InventoryAlertServiceTestSuite) TearDownTest() {
	suite.source.AssertExpectations(suite.T())
}

func TestInventoryAlertServiceTestSuite(t *testing.T) {
	suite.Run(t, new(InventoryAlertServiceTestSuite))
}

func (suite *InventoryAlertServiceTestSuite) TestCheckLowStock_GroupsByTenant() {
	tenantA := uuid.New()
	tenantB := uuid.New()
	suite.source.On("ListLowStock", mock.Anything, maxLowStockScan).Return([]*models.LowStockProduct{
		{TenantID: tenantA, TenantSlug: "a", ProductID: uuid.New(), Name: "Seeds", StockQuantity: 0, StockMinimum: 10},
		{TenantID: tenantA, TenantSlug: "a", ProductID: uuid.New(), Name: "Soil", StockQuantity: 5, StockMinimum: 10},
		{TenantID: tenantB, TenantSlug: "b", ProductID: uuid.New(), Name: "Pots", StockQuantity: 2, StockMinimum: 2},
	}, nil)

	alerts, err := suite.service.CheckLowStock(context.Background())
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), alerts[tenantA], 2)
	assert.Len(suite.T(), alerts[tenantB], 1)
	assert.Equal(suite.T(), 10, alerts[tenantA][0].Threshold)
	assert.Equal(suite.T(), float64(3), testutil.ToFloat64(suite.metrics.LowStockProducts))
}

func (suite *InventoryAlertServiceTestSuite) TestCheckLowStock_NoneFound() {
	suite.source.On("ListLowStock", mock.Anything, maxLowStockScan).Return([]*models.LowStockProduct{}, nil)

	alerts, err := suite.service.CheckLowStock(context.Background())
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), alerts)
	assert.Equal(suite.T(), float64(0), testutil.ToFloat64(suite.metrics.LowStockProducts))
}

func (suite *InventoryAlertServiceTestSuite) TestScheduledLowStockCheck_LogsEachProduct() {
	tenantID := uuid.New()
	suite.source.On("ListLowStock", mock.Anything, maxLowStockScan).Return([]*models.LowStockProduct{
		{TenantID: tenantID, TenantSlug: "acme", ProductID: uuid.New(), Name: "Seeds", StockQuantity: 1, StockMinimum: 10},
	}, nil)

	require.NoError(suite.T(), suite.service.ScheduledLowStockCheck(context.Background()))
	warnings := suite.logs.FilterMessage("low stock").All()
	require.Len(suite.T(), warnings, 1)
	assert.Equal(suite.T(), "Seeds", warnings[0].ContextMap()["product"])
}

func (suite *InventoryAlertServiceTestSuite) TestScheduledLowStockCheck_RepositoryError() {
	suite.source.On("ListLowStock", mock.Anything, maxLowStockScan).Return(nil, errors.New("connection reset"))

	err := suite.service.ScheduledLowStockCheck(context.Background())
	assert.ErrorContains(suite.T(), err, "failed to list low stock products")
	assert.Equal(suite.T(), 1, suite.logs.FilterMessage("scheduled low stock check failed").Len())
}
