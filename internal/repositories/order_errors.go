package repositories

import "fmt"

// OrderErrorCode enumerates failure reasons for order persistence operations.
type OrderErrorCode string

const (
	// OrderErrorUnknown represents an unspecified failure.
	OrderErrorUnknown OrderErrorCode = "order_unknown"
	// OrderErrorNotFound indicates the order does not exist remotely.
	OrderErrorNotFound OrderErrorCode = "order_not_found"
	// OrderErrorUnavailable indicates the order service could not be reached.
	OrderErrorUnavailable OrderErrorCode = "order_unavailable"
	// OrderErrorRejected indicates the order service refused the payload.
	OrderErrorRejected OrderErrorCode = "order_rejected"
)

// OrderError wraps order persistence failures with machine readable codes.
type OrderError struct {
	Op      string
	Code    OrderErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the failure is a missing order.
func (e *OrderError) IsNotFound() bool {
	return e != nil && e.Code == OrderErrorNotFound
}

// IsUnavailable reports whether the order service was unreachable.
func (e *OrderError) IsUnavailable() bool {
	return e != nil && (e.Code == OrderErrorUnavailable || e.Code == OrderErrorUnknown)
}

// NewOrderError constructs a typed order error.
func NewOrderError(op string, code OrderErrorCode, message string, err error) *OrderError {
	if message == "" {
		message = string(code)
	}
	return &OrderError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
