package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"valeservice/internal/models"
	"valeservice/testhelpers"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var productCols = []string{"id", "tenant_id", "name", "sku", "price", "stock_quantity", "stock_minimum", "active", "created_at", "updated_at"}

func stringPtr(s string) *string {
	return &s
}

type ProductRepoTestSuite struct {
	suite.Suite
	mock      pgxmock.PgxPoolIface
	repo      ProductRepository
	tenantID1 uuid.UUID
	tenantID2 uuid.UUID
	productID uuid.UUID
	context   context.Context
}

func (suite *ProductRepoTestSuite) SetupTest() {
	mock, err := testhelpers.NewMockPool()
	require.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewProductRepo(mock)
	suite.tenantID1 = uuid.New()
	suite.tenantID2 = uuid.New()
	suite.productID = uuid.New()
	suite.context = context.Background()
}

func (suite *ProductRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestProductRepoTestSuite(t *testing.T) {
	suite.Run(t, new(ProductRepoTestSuite))
}

func (suite *ProductRepoTestSuite) productRow(tenantID uuid.UUID, stock int) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(productCols).
		AddRow(suite.productID, tenantID, "Tomato seeds", stringPtr("TS-1"), 2.5, stock, 10, true, now, now)
}

func (suite *ProductRepoTestSuite) TestLockForUpdate_ScopedByTenantAndActive() {
	suite.mock.ExpectQuery(`SELECT .+ FROM products WHERE tenant_id = \$1 AND id = \$2 AND \(active = TRUE OR \$3\) FOR UPDATE`).
		WithArgs(suite.tenantID1, suite.productID, false).
		WillReturnRows(suite.productRow(suite.tenantID1, 7))

	product, err := suite.repo.LockForUpdate(suite.context, suite.mock, suite.tenantID1, suite.productID, false)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 7, product.StockQuantity)
	assert.Equal(suite.T(), suite.tenantID1, product.TenantID)
	assert.Equal(suite.T(), "TS-1", *product.SKU)
}

func (suite *ProductRepoTestSuite) TestLockForUpdate_OtherTenantIsInvisible() {
	suite.mock.ExpectQuery(`SELECT .+ FROM products WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs(suite.tenantID2, suite.productID, false).
		WillReturnRows(pgxmock.NewRows(productCols))

	product, err := suite.repo.LockForUpdate(suite.context, suite.mock, suite.tenantID2, suite.productID, false)
	assert.Nil(suite.T(), product)
	assert.True(suite.T(), errors.Is(err, pgx.ErrNoRows))
}

func (suite *ProductRepoTestSuite) TestAdjustStock_ReturnsNewValue() {
	suite.mock.ExpectQuery(`UPDATE products SET stock_quantity = stock_quantity \+ \$3, updated_at = NOW\(\) WHERE tenant_id = \$1 AND id = \$2 RETURNING stock_quantity`).
		WithArgs(suite.tenantID1, suite.productID, -3).
		WillReturnRows(pgxmock.NewRows([]string{"stock_quantity"}).AddRow(4))

	stock, err := suite.repo.AdjustStock(suite.context, suite.mock, suite.tenantID1, suite.productID, -3)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, stock)
}

func (suite *ProductRepoTestSuite) TestList_ActiveOrderedByName() {
	suite.mock.ExpectQuery(`FROM products WHERE tenant_id = \$1 AND active = TRUE ORDER BY name LIMIT \$2 OFFSET \$3`).
		WithArgs(suite.tenantID1, 100, 0).
		WillReturnRows(suite.productRow(suite.tenantID1, 3))

	products, err := suite.repo.List(suite.context, suite.tenantID1, 100, 0)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), products, 1)
}

func (suite *ProductRepoTestSuite) TestSoftDelete_NoRowsIsNotFound() {
	suite.mock.ExpectExec(`UPDATE products SET active = FALSE, updated_at = NOW\(\) WHERE tenant_id = \$1 AND id = \$2 AND active = TRUE`).
		WithArgs(suite.tenantID1, suite.productID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.SoftDelete(suite.context, suite.mock, suite.tenantID1, suite.productID)
	assert.True(suite.T(), errors.Is(err, pgx.ErrNoRows))
}

func (suite *ProductRepoTestSuite) TestListLowStock_JoinsActiveTenants() {
	suite.mock.ExpectQuery(`FROM products p JOIN tenants t ON t.id = p.tenant_id WHERE t.active = TRUE AND p.active = TRUE AND p.stock_quantity <= p.stock_minimum`).
		WithArgs(500).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id", "slug", "id", "name", "stock_quantity", "stock_minimum"}).
			AddRow(suite.tenantID1, "default", suite.productID, "Tomato seeds", 2, 10))

	items, err := suite.repo.ListLowStock(suite.context, 500)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), items, 1)
	assert.Equal(suite.T(), "default", items[0].TenantSlug)
	assert.Equal(suite.T(), 2, items[0].StockQuantity)
}

func (suite *ProductRepoTestSuite) TestCreate_ReturnsTimestamps() {
	product := &models.Product{
		ID:            suite.productID,
		TenantID:      suite.tenantID1,
		Name:          "Urea",
		Price:         12,
		StockQuantity: 40,
		StockMinimum:  models.DefaultStockMinimum,
	}
	now := time.Now()
	suite.mock.ExpectQuery(`INSERT INTO products \(id, tenant_id, name, sku, price, stock_quantity, stock_minimum, active, created_at, updated_at\)`).
		WithArgs(product.ID, product.TenantID, product.Name, product.SKU, product.Price, product.StockQuantity, product.StockMinimum).
		WillReturnRows(pgxmock.NewRows([]string{"active", "created_at", "updated_at"}).AddRow(true, now, now))

	err := suite.repo.Create(suite.context, suite.mock, product)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), product.Active)
	assert.Equal(suite.T(), now, product.CreatedAt)
}
