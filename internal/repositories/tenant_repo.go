package repositories

import (
	"context"
	"errors"

	"valeservice/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TenantRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	ListActive(ctx context.Context) ([]*models.Tenant, error)
	// EnsureDefault inserts the default tenant unless one already exists and
	// returns the stored row. created reports whether this call inserted it.
	EnsureDefault(ctx context.Context, q DBTX, tenant *models.Tenant) (stored *models.Tenant, created bool, err error)
}

type tenantRepo struct {
	db DBTX
}

func NewTenantRepo(db DBTX) TenantRepository {
	return &tenantRepo{db: db}
}

const tenantColumns = `id, slug, name, email, plan, active, is_default, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := row.Scan(&tenant.ID, &tenant.Slug, &tenant.Name, &tenant.Email, &tenant.Plan,
		&tenant.Active, &tenant.IsDefault, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id = $1
	`
	return scanTenant(r.db.QueryRow(ctx, query, id))
}

func (r *tenantRepo) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE slug = $1
	`
	return scanTenant(r.db.QueryRow(ctx, query, slug))
}

func (r *tenantRepo) ListActive(ctx context.Context) ([]*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE active = TRUE
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

func (r *tenantRepo) EnsureDefault(ctx context.Context, q DBTX, tenant *models.Tenant) (*models.Tenant, bool, error) {
	query := `
		INSERT INTO tenants (id, slug, name, email, plan, active, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, TRUE, NOW(), NOW())
		ON CONFLICT DO NOTHING
		RETURNING ` + tenantColumns
	stored, err := scanTenant(q.QueryRow(ctx, query, tenant.ID, tenant.Slug, tenant.Name, tenant.Email, tenant.Plan))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	existing := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE is_default = TRUE
	`
	stored, err = scanTenant(q.QueryRow(ctx, existing))
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}
