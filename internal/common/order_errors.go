package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the order engine so the transport layer
// can map them without inspecting storage errors.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindConflict
	KindTransient
	KindIntegrity
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindIntegrity:
		return "integrity_violation"
	default:
		return "unknown"
	}
}

// OrderError is the error type returned by the order, product and tenant services.
type OrderError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Field   string

	// Set for KindInsufficientStock
	Available int
	Requested int

	Err error
}

func (e *OrderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OrderError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first OrderError in err's chain.
func KindOf(err error) ErrorKind {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

func NewValidationError(field, message string) *OrderError {
	return &OrderError{Kind: KindValidation, Field: field, Message: message}
}

func NewNotFoundError(op, resource string) *OrderError {
	return &OrderError{Kind: KindNotFound, Op: op, Message: resource + " not found"}
}

func NewInsufficientStockError(op string, available, requested int) *OrderError {
	return &OrderError{
		Kind:      KindInsufficientStock,
		Op:        op,
		Message:   "insufficient stock",
		Available: available,
		Requested: requested,
	}
}

func NewConflictError(op, message string, err error) *OrderError {
	return &OrderError{Kind: KindConflict, Op: op, Message: message, Err: err}
}

func NewTransientError(op string, err error) *OrderError {
	return &OrderError{Kind: KindTransient, Op: op, Message: "temporarily unavailable, retry with the same request_id", Err: err}
}

func NewIntegrityError(op, message string, err error) *OrderError {
	return &OrderError{Kind: KindIntegrity, Op: op, Message: message, Err: err}
}
