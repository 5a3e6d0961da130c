package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// migrationLockID serializes concurrent migrate runs across processes.
const migrationLockID = 7390814

// migrations are idempotent and run in order inside one transaction.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id UUID PRIMARY KEY,
		slug VARCHAR(64) NOT NULL,
		name VARCHAR(200) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		plan VARCHAR(32) NOT NULL DEFAULT 'basic',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT tenants_slug_key UNIQUE (slug)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS tenants_single_default_idx ON tenants (is_default) WHERE is_default`,

	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants(id),
		name VARCHAR(200) NOT NULL,
		sku VARCHAR(64),
		price NUMERIC(12,2) NOT NULL DEFAULT 0,
		stock_quantity INTEGER NOT NULL DEFAULT 0,
		stock_minimum INTEGER NOT NULL DEFAULT 10,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT products_tenant_name_key UNIQUE (tenant_id, name),
		CONSTRAINT products_tenant_id_id_key UNIQUE (tenant_id, id),
		CONSTRAINT products_stock_quantity_check CHECK (stock_quantity >= 0),
		CONSTRAINT products_stock_minimum_check CHECK (stock_minimum >= 0),
		CONSTRAINT products_price_check CHECK (price >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_tenant_active ON products (tenant_id, active, name)`,
	`CREATE INDEX IF NOT EXISTS idx_products_low_stock ON products (tenant_id) WHERE active AND stock_quantity <= stock_minimum`,

	// orders reference their product through (tenant_id, product_id) so an
	// order can never point at another tenant's product
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants(id),
		product_id UUID NOT NULL,
		request_id VARCHAR(128) NOT NULL,
		quantity INTEGER NOT NULL,
		total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL,
		comment VARCHAR(500),
		created_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT orders_tenant_request_key UNIQUE (tenant_id, request_id),
		CONSTRAINT orders_product_fkey FOREIGN KEY (tenant_id, product_id) REFERENCES products (tenant_id, id),
		CONSTRAINT orders_quantity_check CHECK (quantity > 0),
		CONSTRAINT orders_status_check CHECK (status IN ('COMMITTED', 'CANCELLED'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_tenant_created ON orders (tenant_id, created_at DESC, id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_tenant_product ON orders (tenant_id, product_id)`,

	`CREATE TABLE IF NOT EXISTS audit_entries (
		id BIGSERIAL PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants(id),
		user_id UUID,
		action VARCHAR(16) NOT NULL,
		resource_type VARCHAR(32) NOT NULL,
		resource_id VARCHAR(64) NOT NULL,
		before_state JSONB,
		after_state JSONB,
		request_id VARCHAR(128),
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		CONSTRAINT audit_entries_action_check CHECK (action IN ('CREATE', 'UPDATE', 'DELETE'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_resource ON audit_entries (tenant_id, resource_type, resource_id, id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_tenant_created ON audit_entries (tenant_id, created_at)`,

	`CREATE OR REPLACE FUNCTION audit_entries_immutable() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'audit entries are append-only';
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS audit_entries_no_update ON audit_entries`,
	`CREATE TRIGGER audit_entries_no_update
		BEFORE UPDATE OR DELETE ON audit_entries
		FOR EACH ROW EXECUTE FUNCTION audit_entries_immutable()`,

	`INSERT INTO tenants (id, slug, name, email, plan, active, is_default)
	VALUES (gen_random_uuid(), 'default', 'Default', 'admin@localhost', 'basic', TRUE, TRUE)
	ON CONFLICT DO NOTHING`,
}

// Migrate creates or updates the schema and bootstraps the default tenant.
// Running it again against a migrated database changes nothing.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	for i, migration := range migrations {
		if _, err := tx.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	logger.Info("database migrated", zap.Int("statements", len(migrations)))
	return nil
}
