package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFoundOrUnauthorized = errors.New("order not found or unauthorized")
	ErrOrderNotFound          = errors.New("order not found")
	ErrDeadlineNotReached     = errors.New("commit deadline not reached")
)

// InvalidStateError is returned when an order is not in the status an operation requires.
// Under concurrent commit/sweep it means the order was already resolved.
type InvalidStateError struct {
	OrderID  string
	Actual   OrderStatus
	Expected OrderStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("order %s is in status %q, expected %q", e.OrderID, e.Actual, e.Expected)
}

func ValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
