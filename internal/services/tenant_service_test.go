package services

import (
	"context"
	"errors"
	"testing"

	"valeservice/internal/common"
	"valeservice/internal/models"
	"valeservice/internal/repositories"
	"valeservice/testhelpers"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEnsureDefaultTenant_FirstStartAuditsCreation(t *testing.T) {
	pool, err := testhelpers.NewMockPool()
	require.NoError(t, err)
	defer pool.Close()

	service := NewTenantService(pool, repositories.NewTenantRepo(pool), repositories.NewAuditLogsRepo(pool), nil, nil)
	tenantID := uuid.New()

	pool.ExpectBegin()
	pool.ExpectQuery(`INSERT INTO tenants .+ ON CONFLICT DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), models.DefaultTenantSlug, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(tenantCols).
			AddRow(tenantID, "default", "Default", "admin@localhost", "basic", true, true, testNow(), testNow()))
	pool.ExpectQuery(`INSERT INTO audit_entries`).
		WithArgs(tenantID, pgxmock.AnyArg(), models.ActionCreate, models.ResourceTenant, tenantID.String(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(auditInsertRows(1))
	pool.ExpectCommit()

	tenant, err := service.EnsureDefaultTenant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTenantSlug, tenant.Slug)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestEnsureDefaultTenant_ExistingIsNotAudited(t *testing.T) {
	pool, err := testhelpers.NewMockPool()
	require.NoError(t, err)
	defer pool.Close()

	service := NewTenantService(pool, repositories.NewTenantRepo(pool), repositories.NewAuditLogsRepo(pool), nil, nil)
	existingID := uuid.New()

	pool.ExpectBegin()
	pool.ExpectQuery(`INSERT INTO tenants`).
		WithArgs(pgxmock.AnyArg(), models.DefaultTenantSlug, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(tenantCols))
	pool.ExpectQuery(`FROM tenants WHERE is_default = TRUE`).
		WillReturnRows(pgxmock.NewRows(tenantCols).
			AddRow(existingID, "default", "Default", "admin@localhost", "basic", true, true, testNow(), testNow()))
	pool.ExpectCommit()

	tenant, err := service.EnsureDefaultTenant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, existingID, tenant.ID)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestGetTenant_UsesCache(t *testing.T) {
	cache := new(MockCacheService)
	tenant := &models.Tenant{ID: uuid.New(), Slug: "acme", Active: true}
	cache.On("GetTenant", mock.Anything, tenant.ID).Return(tenant, nil)

	service := NewTenantService(nil, nil, nil, cache, nil)
	got, err := service.GetTenant(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant, got)
	cache.AssertExpectations(t)
}

func TestResolve_MissingTenantClaim(t *testing.T) {
	resolver := NewTenantResolver(new(MockTenantService), nil)

	_, err := resolver.Resolve(context.Background(), &models.Claims{})
	assert.ErrorIs(t, err, ErrMissingTenantContext)

	_, err = resolver.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingTenantContext)

	_, err = resolver.Resolve(context.Background(), &models.Claims{TenantID: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrMissingTenantContext)
}

func TestResolve_ActiveTenantWithUser(t *testing.T) {
	tenants := new(MockTenantService)
	tenantID := uuid.New()
	userID := uuid.New()
	tenants.On("GetTenant", mock.Anything, tenantID).Return(&models.Tenant{ID: tenantID, Active: true}, nil)

	scope, err := NewTenantResolver(tenants, nil).Resolve(context.Background(), &models.Claims{
		TenantID:         tenantID.String(),
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, tenantID, scope.TenantID)
	require.NotNil(t, scope.UserID)
	assert.Equal(t, userID, *scope.UserID)
}

func TestResolve_UnknownOrInactiveTenant(t *testing.T) {
	tenants := new(MockTenantService)
	unknown := uuid.New()
	inactive := uuid.New()
	tenants.On("GetTenant", mock.Anything, unknown).Return(nil, common.NewNotFoundError("get tenant", "tenant"))
	tenants.On("GetTenant", mock.Anything, inactive).Return(&models.Tenant{ID: inactive, Active: false}, nil)
	resolver := NewTenantResolver(tenants, nil)

	_, err := resolver.Resolve(context.Background(), &models.Claims{TenantID: unknown.String()})
	assert.ErrorIs(t, err, ErrTenantInactive)

	_, err = resolver.Resolve(context.Background(), &models.Claims{TenantID: inactive.String()})
	assert.ErrorIs(t, err, ErrTenantInactive)
}

func TestResolve_StorageErrorPassesThrough(t *testing.T) {
	tenants := new(MockTenantService)
	tenantID := uuid.New()
	tenants.On("GetTenant", mock.Anything, tenantID).Return(nil, common.NewTransientError("get tenant", errors.New("timeout")))

	_, err := NewTenantResolver(tenants, nil).Resolve(context.Background(), &models.Claims{TenantID: tenantID.String()})
	assert.True(t, common.IsKind(err, common.KindTransient))
}
