package services

import (
	"context"
	"testing"

	"valeservice/internal/common"
	"valeservice/internal/models"
	"valeservice/internal/repositories"
	"valeservice/testhelpers"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ProductServiceTestSuite struct {
	suite.Suite
	mock      pgxmock.PgxPoolIface
	service   ProductService
	scope     models.Scope
	productID uuid.UUID
	ctx       context.Context
}

func (suite *ProductServiceTestSuite) SetupTest() {
	mock, err := testhelpers.NewMockPool()
	require.NoError(suite.T(), err)
	suite.mock = mock
	suite.service = NewProductService(mock, repositories.NewProductRepo(mock), repositories.NewAuditLogsRepo(mock), DefaultLockTimeout, nil)

	userID := uuid.New()
	suite.scope = models.Scope{TenantID: uuid.New(), UserID: &userID}
	suite.productID = uuid.New()
	suite.ctx = context.Background()
}

func (suite *ProductServiceTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestProductServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ProductServiceTestSuite))
}

func (suite *ProductServiceTestSuite) TestCreateProduct_DefaultsStockMinimum() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`INSERT INTO products`).
		WithArgs(pgxmock.AnyArg(), suite.scope.TenantID, "Urea", pgxmock.AnyArg(), 12.0, 40, models.DefaultStockMinimum).
		WillReturnRows(pgxmock.NewRows([]string{"active", "created_at", "updated_at"}).AddRow(true, testNow(), testNow()))
	suite.mock.ExpectQuery(`INSERT INTO audit_entries`).
		WithArgs(suite.scope.TenantID, suite.scope.UserID, models.ActionCreate, models.ResourceProduct, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(auditInsertRows(1))
	suite.mock.ExpectCommit()

	product, err := suite.service.CreateProduct(suite.ctx, suite.scope, &CreateProductRequest{Name: "  Urea ", Price: 12, StockQuantity: 40})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Urea", product.Name)
	assert.Equal(suite.T(), models.DefaultStockMinimum, product.StockMinimum)
	assert.True(suite.T(), product.Active)
}

func (suite *ProductServiceTestSuite) TestCreateProduct_DuplicateNameIsConflict() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`INSERT INTO products`).
		WithArgs(pgxmock.AnyArg(), suite.scope.TenantID, "Urea", pgxmock.AnyArg(), 12.0, 0, models.DefaultStockMinimum).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: repositories.ConstraintProductsTenantName})
	suite.mock.ExpectRollback()

	_, err := suite.service.CreateProduct(suite.ctx, suite.scope, &CreateProductRequest{Name: "Urea", Price: 12})
	assert.True(suite.T(), common.IsKind(err, common.KindConflict))
}

func (suite *ProductServiceTestSuite) TestCreateProduct_Validation() {
	cases := []*CreateProductRequest{
		{Name: "", Price: 1},
		{Name: "Urea", Price: -1},
		{Name: "Urea", Price: 1, StockQuantity: -5},
	}
	for _, req := range cases {
		_, err := suite.service.CreateProduct(suite.ctx, suite.scope, req)
		assert.True(suite.T(), common.IsKind(err, common.KindValidation), "request %+v", req)
	}
}

func (suite *ProductServiceTestSuite) TestUpdateProduct_StockChangeIsLockedAndAudited() {
	stock := 25
	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`SET LOCAL lock_timeout`).WillReturnResult(pgxmock.NewResult("SET", 0))
	suite.mock.ExpectQuery(`FROM products WHERE tenant_id = \$1 AND id = \$2 AND \(active = TRUE OR \$3\) FOR UPDATE`).
		WithArgs(suite.scope.TenantID, suite.productID, false).
		WillReturnRows(productRows(suite.productID, suite.scope.TenantID, 2.5, 10, true))
	suite.mock.ExpectQuery(`UPDATE products SET name = \$1`).
		WithArgs("Tomato seeds", pgxmock.AnyArg(), 2.5, 25, 10, suite.scope.TenantID, suite.productID).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(testNow()))
	suite.mock.ExpectQuery(`INSERT INTO audit_entries`).
		WithArgs(suite.scope.TenantID, suite.scope.UserID, models.ActionUpdate, models.ResourceProduct, suite.productID.String(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(auditInsertRows(2))
	suite.mock.ExpectCommit()

	product, err := suite.service.UpdateProduct(suite.ctx, suite.scope, suite.productID, &models.ProductUpdate{StockQuantity: &stock})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 25, product.StockQuantity)
}

func (suite *ProductServiceTestSuite) TestUpdateProduct_NegativeStockRejected() {
	stock := -1
	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`SET LOCAL lock_timeout`).WillReturnResult(pgxmock.NewResult("SET", 0))
	suite.mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(suite.scope.TenantID, suite.productID, false).
		WillReturnRows(productRows(suite.productID, suite.scope.TenantID, 2.5, 10, true))
	suite.mock.ExpectRollback()

	_, err := suite.service.UpdateProduct(suite.ctx, suite.scope, suite.productID, &models.ProductUpdate{StockQuantity: &stock})
	assert.True(suite.T(), common.IsKind(err, common.KindValidation))
}

func (suite *ProductServiceTestSuite) TestDeleteProduct_SoftDeletesAndAudits() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`SET LOCAL lock_timeout`).WillReturnResult(pgxmock.NewResult("SET", 0))
	suite.mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(suite.scope.TenantID, suite.productID, false).
		WillReturnRows(productRows(suite.productID, suite.scope.TenantID, 2.5, 10, true))
	suite.mock.ExpectExec(`UPDATE products SET active = FALSE`).
		WithArgs(suite.scope.TenantID, suite.productID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectQuery(`INSERT INTO audit_entries`).
		WithArgs(suite.scope.TenantID, suite.scope.UserID, models.ActionDelete, models.ResourceProduct, suite.productID.String(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(auditInsertRows(3))
	suite.mock.ExpectCommit()

	assert.NoError(suite.T(), suite.service.DeleteProduct(suite.ctx, suite.scope, suite.productID))
}

func (suite *ProductServiceTestSuite) TestGetProduct_NotFound() {
	suite.mock.ExpectQuery(`FROM products WHERE tenant_id = \$1 AND id = \$2 AND active = TRUE`).
		WithArgs(suite.scope.TenantID, suite.productID).
		WillReturnRows(pgxmock.NewRows(productCols))

	_, err := suite.service.GetProduct(suite.ctx, suite.scope.TenantID, suite.productID)
	assert.True(suite.T(), common.IsKind(err, common.KindNotFound))
}
