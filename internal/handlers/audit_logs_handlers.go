package handlers

import (
	"net/http"

	"valeservice/internal/common"
	"valeservice/internal/services"

	"github.com/labstack/echo/v4"
)

// AuditLogsHandlers exposes the audit trail read-only
type AuditLogsHandlers struct {
	auditService services.AuditService
	resolver     services.TenantResolver
}

func NewAuditLogsHandlers(auditService services.AuditService, resolver services.TenantResolver) *AuditLogsHandlers {
	return &AuditLogsHandlers{auditService: auditService, resolver: resolver}
}

// GetEntityHistory handles GET /audit/:resource_type/:id
func (h *AuditLogsHandlers) GetEntityHistory(c echo.Context) error {
	scope, err := resolveScope(c, h.resolver)
	if err != nil {
		return sendScopeError(c, err)
	}

	limit, err := intQueryParam(c, "limit")
	if err != nil {
		return common.SendValidationError(c, "limit", "limit must be an integer")
	}
	offset, err := intQueryParam(c, "offset")
	if err != nil {
		return common.SendValidationError(c, "offset", "offset must be an integer")
	}

	entries, err := h.auditService.ListForResource(c.Request().Context(), scope.TenantID, c.Param("resource_type"), c.Param("id"), limit, offset)
	if err != nil {
		return common.SendServiceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
