package handlers

import (
	"errors"
	"net/http"

	"valeservice/internal/common"
	"valeservice/internal/logger"
	"valeservice/internal/middleware"
	"valeservice/internal/models"
	"valeservice/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// resolveScope resolves the caller's tenant from the verified token claims
// and tags the request logger with it. Every tenant-scoped handler calls it
// first and passes the scope on explicitly.
func resolveScope(c echo.Context, resolver services.TenantResolver) (models.Scope, error) {
	claims, _ := middleware.ClaimsFromContext(c)
	scope, err := resolver.Resolve(c.Request().Context(), claims)
	if err != nil {
		return models.Scope{}, err
	}

	ctxLogger := logger.FromEcho(c).With(zap.String("tenant_id", scope.TenantID.String()))
	c.Set("logger", ctxLogger)
	c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context(), ctxLogger)))
	return scope, nil
}

func sendScopeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrMissingTenantContext):
		return common.SendUnauthorizedError(c, "Token missing tenant context")
	case errors.Is(err, services.ErrTenantInactive):
		return c.JSON(http.StatusForbidden, common.CreateErrorResponse("FORBIDDEN", "Tenant is not active", nil))
	default:
		return common.SendServiceError(c, err)
	}
}
