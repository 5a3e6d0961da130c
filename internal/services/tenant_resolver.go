package services

import (
	"context"
	"errors"

	"valeservice/internal/common"
	"valeservice/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingTenantContext = errors.New("token missing tenant context")
	ErrTenantInactive       = errors.New("tenant is not active")
)

// TenantResolver turns verified token claims into the scope every service
// call is made with.
type TenantResolver interface {
	Resolve(ctx context.Context, claims *models.Claims) (models.Scope, error)
}

type tenantResolver struct {
	tenants TenantService
	logger  *zap.Logger
}

func NewTenantResolver(tenants TenantService, logger *zap.Logger) TenantResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tenantResolver{tenants: tenants, logger: logger}
}

func (r *tenantResolver) Resolve(ctx context.Context, claims *models.Claims) (models.Scope, error) {
	if claims == nil || claims.TenantID == "" {
		return models.Scope{}, ErrMissingTenantContext
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil || tenantID == uuid.Nil {
		return models.Scope{}, ErrMissingTenantContext
	}

	tenant, err := r.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		if common.IsKind(err, common.KindNotFound) {
			r.logger.Warn("token references unknown tenant",
				zap.String("tenant_id", claims.TenantID), zap.String("subject", claims.Subject))
			return models.Scope{}, ErrTenantInactive
		}
		return models.Scope{}, err
	}
	if !tenant.Active {
		r.logger.Warn("access attempt for inactive tenant",
			zap.String("tenant_id", claims.TenantID), zap.String("subject", claims.Subject))
		return models.Scope{}, ErrTenantInactive
	}

	scope := models.Scope{TenantID: tenant.ID}
	if userID, err := uuid.Parse(claims.Subject); err == nil && userID != uuid.Nil {
		scope.UserID = &userID
	}
	return scope, nil
}
