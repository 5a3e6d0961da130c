package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"valeservice/internal/common"
	"valeservice/internal/models"
	"valeservice/internal/services"

	"github.com/labstack/echo/v4"
)

// HeaderIdempotencyKey is accepted as the request_id when the body has none.
const HeaderIdempotencyKey = "Idempotency-Key"

// OrderHandlers handles HTTP requests for orders
type OrderHandlers struct {
	orderService services.OrderService
	resolver     services.TenantResolver
}

// NewOrderHandlers creates a new order handlers instance
func NewOrderHandlers(orderService services.OrderService, resolver services.TenantResolver) *OrderHandlers {
	return &OrderHandlers{
		orderService: orderService,
		resolver:     resolver,
	}
}

type CreateOrderRequest struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	RequestID string  `json:"request_id"`
	Comment   *string `json:"comment"`
}

// CreateOrder godoc
// @Summary      Admit an order
// @Description  Atomically decrements stock and records the order. Retries with the same request_id replay the original result.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        order  body      CreateOrderRequest  true  "Order"
// @Success      201    {object}  models.OrderView
// @Success      200    {object}  models.OrderView
// @Failure      400    {object}  common.ErrorResponse
// @Failure      409    {object}  common.ErrorResponse
// @Failure      503    {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/orders [post]
func (h *OrderHandlers) CreateOrder(c echo.Context) error {
	scope, err := resolveScope(c, h.resolver)
	if err != nil {
		return sendScopeError(c, err)
	}

	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.RequestID == "" {
		req.RequestID = strings.TrimSpace(c.Request().Header.Get(HeaderIdempotencyKey))
	}

	productID, err := common.ValidateUUID(req.ProductID, "product_id")
	if err != nil {
		return common.SendValidationError(c, "product_id", err.Error())
	}

	view, err := h.orderService.CreateOrder(c.Request().Context(), scope.TenantID, scope.UserID, productID, req.Quantity, req.RequestID, req.Comment)
	if err != nil {
		return common.SendServiceError(c, err)
	}

	if view.Replayed {
		return c.JSON(http.StatusOK, view)
	}
	return c.JSON(http.StatusCreated, view)
}

// GetOrders handles GET /orders
func (h *OrderHandlers) GetOrders(c echo.Context) error {
	scope, err := resolveScope(c, h.resolver)
	if err != nil {
		return sendScopeError(c, err)
	}

	filter := models.OrderFilter{}
	if status := c.QueryParam("status"); status != "" {
		status = strings.ToUpper(status)
		filter.Status = &status
	}
	if productIDStr := c.QueryParam("product_id"); productIDStr != "" {
		productID, err := common.ValidateUUID(productIDStr, "product_id")
		if err != nil {
			return common.SendValidationError(c, "product_id", err.Error())
		}
		filter.ProductID = &productID
	}
	if filter.Limit, err = intQueryParam(c, "limit"); err != nil {
		return common.SendValidationError(c, "limit", "limit must be an integer")
	}
	if filter.Offset, err = intQueryParam(c, "offset"); err != nil {
		return common.SendValidationError(c, "offset", "offset must be an integer")
	}

	orders, err := h.orderService.ListOrders(c.Request().Context(), scope.TenantID, filter)
	if err != nil {
		return common.SendServiceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrder handles GET /orders/:id
func (h *OrderHandlers) GetOrder(c echo.Context) error {
	scope, err := resolveScope(c, h.resolver)
	if err != nil {
		return sendScopeError(c, err)
	}

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	view, err := h.orderService.GetOrder(c.Request().Context(), scope.TenantID, id)
	if err != nil {
		return common.SendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// CancelOrder handles POST /orders/:id/cancel and DELETE /orders/:id.
// Cancelling an already cancelled order returns it unchanged.
func (h *OrderHandlers) CancelOrder(c echo.Context) error {
	scope, err := resolveScope(c, h.resolver)
	if err != nil {
		return sendScopeError(c, err)
	}

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	view, err := h.orderService.CancelOrder(c.Request().Context(), scope.TenantID, scope.UserID, id)
	if err != nil {
		return common.SendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

type UpdateOrderCommentRequest struct {
	Comment *string `json:"comment"`
}

// UpdateOrderComment godoc
// @Summary      Edit an order comment
// @Description  Replaces the comment of an order and records the change in the audit trail. A null comment clears it.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Order ID"
// @Param        comment  body      UpdateOrderCommentRequest  true  "Comment"
// @Success      200      {object}  models.OrderView
// @Failure      400      {object}  common.ErrorResponse
// @Failure      404      {object}  common.ErrorResponse
// @Failure      503      {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/orders/{id} [patch]
func (h *OrderHandlers) UpdateOrderComment(c echo.Context) error {
	scope, err := resolveScope(c, h.resolver)
	if err != nil {
		return sendScopeError(c, err)
	}

	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req UpdateOrderCommentRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	view, err := h.orderService.UpdateComment(c.Request().Context(), scope.TenantID, scope.UserID, id, req.Comment)
	if err != nil {
		return common.SendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func intQueryParam(c echo.Context, name string) (int, error) {
	value := c.QueryParam(name)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}
