package services

import (
	"context"
	"errors"
	"time"

	"valeservice/internal/caching"
	"valeservice/internal/common"
	"valeservice/internal/models"
	"valeservice/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const tenantCacheTTL = 5 * time.Minute

type TenantService interface {
	// EnsureDefaultTenant creates the default tenant on first start and
	// returns it. Later calls return the stored row unchanged.
	EnsureDefaultTenant(ctx context.Context) (*models.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	ListActiveTenants(ctx context.Context) ([]*models.Tenant, error)
}

type tenantService struct {
	db         repositories.TxBeginner
	tenantRepo repositories.TenantRepository
	audit      *auditEmitter
	cache      caching.CacheService
	logger     *zap.Logger
}

func NewTenantService(db repositories.TxBeginner, tenantRepo repositories.TenantRepository, auditRepo repositories.AuditLogsRepository, cache caching.CacheService, logger *zap.Logger) TenantService {
	if cache == nil {
		cache = caching.NoopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tenantService{
		db:         db,
		tenantRepo: tenantRepo,
		audit:      &auditEmitter{auditRepo: auditRepo},
		cache:      cache,
		logger:     logger,
	}
}

func (s *tenantService) EnsureDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tenant, created, err := s.tenantRepo.EnsureDefault(ctx, tx, &models.Tenant{
		ID:    uuid.New(),
		Slug:  models.DefaultTenantSlug,
		Name:  "Default",
		Email: "admin@localhost",
		Plan:  "basic",
	})
	if err != nil {
		return nil, storageError("ensure default tenant", err)
	}

	if created {
		if err := s.audit.record(ctx, tx, &models.AuditEntry{
			TenantID:     tenant.ID,
			Action:       models.ActionCreate,
			ResourceType: models.ResourceTenant,
			ResourceID:   tenant.ID.String(),
			AfterState: models.JSONB{
				"slug":       tenant.Slug,
				"name":       tenant.Name,
				"plan":       tenant.Plan,
				"is_default": true,
			},
		}); err != nil {
			return nil, storageError("ensure default tenant", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, commitError("ensure default tenant", err)
	}

	if created {
		s.logger.Info("default tenant created", zap.String("tenant_id", tenant.ID.String()))
	}
	return tenant, nil
}

func (s *tenantService) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if cached, err := s.cache.GetTenant(ctx, id); err == nil && cached != nil {
		return cached, nil
	}

	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("get tenant", "tenant")
	}
	if err != nil {
		return nil, storageError("get tenant", err)
	}

	if err := s.cache.SetTenant(ctx, tenant, tenantCacheTTL); err != nil {
		s.logger.Debug("failed to cache tenant", zap.String("tenant_id", id.String()), zap.Error(err))
	}
	return tenant, nil
}

func (s *tenantService) ListActiveTenants(ctx context.Context) ([]*models.Tenant, error) {
	tenants, err := s.tenantRepo.ListActive(ctx)
	if err != nil {
		return nil, storageError("list tenants", err)
	}
	return tenants, nil
}
