package testhelpers

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"valeservice/internal/models"
	"valeservice/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap/zaptest"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func()
}

// SetupTestDB connects to TEST_DATABASE_URL and applies the schema. The test
// is skipped when the variable is unset or -short is given.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := zaptest.NewLogger(t)
	pool, err := database.NewPool(ctx, database.PoolConfig{URL: connString, MaxConns: 20, MinConns: 1}, logger)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return &TestDB{
		Pool:    pool,
		Cleanup: pool.Close,
	}
}

// SetupTestTenant creates an active tenant with a unique slug.
func SetupTestTenant(t *testing.T, db *TestDB) uuid.UUID {
	t.Helper()

	tenantID := uuid.New()
	slug := fmt.Sprintf("test-%s", tenantID.String()[:8])
	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO tenants (id, slug, name, email, plan, active, is_default)
		VALUES ($1, $2, $3, $4, 'basic', TRUE, FALSE)`,
		tenantID, slug, "Test Tenant "+slug, slug+"@example.com")
	if err != nil {
		t.Fatalf("Failed to create test tenant: %v", err)
	}
	return tenantID
}

// SetupTestProduct creates an active product holding stock units.
func SetupTestProduct(t *testing.T, db *TestDB, tenantID uuid.UUID, stock int) *models.Product {
	t.Helper()

	now := time.Now()
	product := &models.Product{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Name:          "Test Product " + uuid.NewString()[:8],
		Price:         10.5,
		StockQuantity: stock,
		StockMinimum:  models.DefaultStockMinimum,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO products (id, tenant_id, name, price, stock_quantity, stock_minimum, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		product.ID, product.TenantID, product.Name, product.Price, product.StockQuantity,
		product.StockMinimum, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create test product: %v", err)
	}
	return product
}

// StockOf reads the current stock of a product.
func StockOf(t *testing.T, db *TestDB, tenantID, productID uuid.UUID) int {
	t.Helper()

	var stock int
	err := db.Pool.QueryRow(context.Background(),
		`SELECT stock_quantity FROM products WHERE tenant_id = $1 AND id = $2`, tenantID, productID).Scan(&stock)
	if err != nil {
		t.Fatalf("Failed to read stock: %v", err)
	}
	return stock
}
