package repositories

import (
	"context"
	"testing"
	"time"

	"valeservice/internal/models"
	"valeservice/testhelpers"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tenantCols = []string{"id", "slug", "name", "email", "plan", "active", "is_default", "created_at", "updated_at"}

func TestEnsureDefault_Inserts(t *testing.T) {
	mock, err := testhelpers.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTenantRepo(mock)
	tenant := &models.Tenant{ID: uuid.New(), Slug: models.DefaultTenantSlug, Name: "Default", Email: "admin@localhost", Plan: "basic"}
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO tenants .+ ON CONFLICT DO NOTHING RETURNING`).
		WithArgs(tenant.ID, tenant.Slug, tenant.Name, tenant.Email, tenant.Plan).
		WillReturnRows(pgxmock.NewRows(tenantCols).
			AddRow(tenant.ID, "default", "Default", "admin@localhost", "basic", true, true, now, now))

	stored, created, err := repo.EnsureDefault(context.Background(), mock, tenant)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, stored.IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDefault_ExistingIsReturned(t *testing.T) {
	mock, err := testhelpers.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTenantRepo(mock)
	existingID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO tenants .+ ON CONFLICT DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), "default", "", "", "").
		WillReturnRows(pgxmock.NewRows(tenantCols))
	mock.ExpectQuery(`FROM tenants WHERE is_default = TRUE`).
		WillReturnRows(pgxmock.NewRows(tenantCols).
			AddRow(existingID, "default", "Default", "admin@localhost", "basic", true, true, now, now))

	stored, created, err := repo.EnsureDefault(context.Background(), mock, &models.Tenant{ID: uuid.New(), Slug: "default"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existingID, stored.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
