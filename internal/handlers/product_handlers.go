package handlers

import (
	"net/http"

	"valeservice/internal/common"
	"valeservice/internal/models"
	"valeservice/internal/services"

	"github.com/labstack/echo/v4"
)

// ProductHandlers handles HTTP requests for products
type ProductHandlers struct {
	productService services.ProductService
	resolver       services.TenantResolver
}

// NewProductHandlers creates a new product handlers instance
func NewProductHandlers(productService services.ProductService, resolver services.TenantResolver) *ProductHandlers {
	return &ProductHandlers{
		productService: productService,
		resolver:       resolver,
	}
}

// CreateProduct handles POST /products
func (h *ProductHandlers) CreateProduct(c echo.Context) error {
	scope, err := resolveScope(c, h.resolver)
	if err != nil {
		return sendScopeError(c, err)
	}

	var req services.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	product, err := h.productService.CreateProduct(c.Request().Context(), scope, &req)
	if err != nil {
		return common.SendServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, product)
}

// ListProducts handles GET /products. Only active products are listed.
func (h *ProductHandlers) ListProducts(c echo.Context) error {
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

	products, err := h.productService.ListProducts(c.Request().Context(), scope.TenantID, limit, offset)
	if err != nil {
		return common.SendServiceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct handles GET /products/:id
func (h *ProductHandlers) GetProduct(c echo.Context) error {
	scope, err := resolveScope(c, h.resolver)
	if err != nil {
		return sendScopeError(c, err)
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	product, err := h.productService.GetProduct(c.Request().Context(), scope.TenantID, id)
	if err != nil {
		return common.SendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// UpdateProduct handles PUT /products/:id. Omitted fields keep their value.
func (h *ProductHandlers) UpdateProduct(c echo.Context) error {
	scope, err := resolveScope(c, h.resolver)
	if err != nil {
		return sendScopeError(c, err)
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var update models.ProductUpdate
	if err := c.Bind(&update); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	product, err := h.productService.UpdateProduct(c.Request().Context(), scope, id, &update)
	if err != nil {
		return common.SendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// DeleteProduct handles DELETE /products/:id
func (h *ProductHandlers) DeleteProduct(c echo.Context) error {
	scope, err := resolveScope(c, h.resolver)
	if err != nil {
		return sendScopeError(c, err)
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.productService.DeleteProduct(c.Request().Context(), scope, id); err != nil {
		return common.SendServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}
