package handlers

import (
	"net/http"

	"valeservice/internal/common"
	"valeservice/internal/services"

	"github.com/labstack/echo/v4"
)

type TenantHandlers struct {
	tenantService services.TenantService
	resolver      services.TenantResolver
}

func NewTenantHandlers(tenantService services.TenantService, resolver services.TenantResolver) *TenantHandlers {
	return &TenantHandlers{tenantService: tenantService, resolver: resolver}
}

// GetCurrentTenant handles GET /tenant and returns the caller's tenant
func (h *TenantHandlers) GetCurrentTenant(c echo.Context) error {
	scope, err := resolveScope(c, h.resolver)
	if err != nil {
		return sendScopeError(c, err)
	}

	tenant, err := h.tenantService.GetTenant(c.Request().Context(), scope.TenantID)
	if err != nil {
		return common.SendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}
