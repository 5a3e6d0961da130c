package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"valeservice/internal/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// MaxRequestIDLength bounds client supplied idempotency tokens
	MaxRequestIDLength = 128
	// MaxOrderQuantity is the largest quantity accepted in one order
	MaxOrderQuantity = 1000000

	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]interface{}) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]interface{}{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context, message string) error {
	if message == "" {
		message = "Unauthorized access"
	}
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", message, nil))
}

// SendServiceError maps an error returned by a service to its HTTP response.
func SendServiceError(c echo.Context, err error) error {
	var oe *OrderError
	if !errors.As(err, &oe) {
		logger.FromContext(c.Request().Context()).Error("unclassified service error", zap.Error(err))
		return SendServerError(c, "Internal server error")
	}

	switch oe.Kind {
	case KindValidation:
		field := oe.Field
		if field == "" {
			field = "request"
		}
		return SendValidationError(c, field, oe.Message)
	case KindNotFound:
		return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", oe.Message, nil))
	case KindInsufficientStock:
		return c.JSON(http.StatusConflict, CreateErrorResponse("INSUFFICIENT_STOCK", "Insufficient stock", map[string]interface{}{
			"available": oe.Available,
			"requested": oe.Requested,
		}))
	case KindConflict:
		return c.JSON(http.StatusConflict, CreateErrorResponse("CONFLICT", oe.Message, nil))
	case KindTransient:
		logger.FromContext(c.Request().Context()).Warn("transient failure", zap.Error(err))
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, CreateErrorResponse("TRANSIENT_ERROR", "Service temporarily unavailable, retry with the same request_id", nil))
	case KindIntegrity:
		logger.FromContext(c.Request().Context()).Error("integrity violation", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, CreateErrorResponse("INTEGRITY_VIOLATION", "Internal consistency error", nil))
	default:
		return SendServerError(c, "Internal server error")
	}
}

// ValidateUUID validates UUID format with comprehensive checks
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}

	if len(idStr) != 36 {
		return uuid.Nil, fmt.Errorf("%s must be exactly 36 characters (including hyphens)", fieldName)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s contains invalid characters: %v", fieldName, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s must not be the nil UUID", fieldName)
	}

	return id, nil
}

// ValidatePositiveInteger validates positive integer values with upper bounds
func ValidatePositiveInteger(value int, fieldName string, maxValue int) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", fieldName)
	}
	if value > maxValue {
		return fmt.Errorf("%s cannot exceed %d", fieldName, maxValue)
	}
	return nil
}

// ValidateNonNegativeInteger validates stock style counters
func ValidateNonNegativeInteger(value int, fieldName string) error {
	if value < 0 {
		return fmt.Errorf("%s cannot be negative", fieldName)
	}
	return nil
}

// ValidateRequestID validates a client supplied idempotency token
func ValidateRequestID(requestID string) error {
	if strings.TrimSpace(requestID) == "" {
		return fmt.Errorf("request_id is required")
	}
	if len(requestID) > MaxRequestIDLength {
		return fmt.Errorf("request_id cannot exceed %d characters", MaxRequestIDLength)
	}
	return nil
}

// ValidateRequiredString validates required string fields
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateOptionalString validates optional string fields
func ValidateOptionalString(value *string, fieldName string, maxLength int) error {
	if value != nil {
		*value = strings.TrimSpace(*value)
		if len(*value) > maxLength {
			return fmt.Errorf("%s cannot exceed %d characters", fieldName, maxLength)
		}
	}
	return nil
}

// ValidatePaginationParams clamps list pagination parameters
func ValidatePaginationParams(limit, offset int) (int, int, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	if offset < 0 {
		return 0, 0, fmt.Errorf("offset cannot be negative")
	}
	if offset > 1000000 {
		return 0, 0, fmt.Errorf("offset cannot exceed 1,000,000")
	}

	return limit, offset, nil
}
