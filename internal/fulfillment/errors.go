package fulfillment

import (
	"errors"
	"fmt"

	"github.com/campuseats/canteen/internal/domain"
)

var (
	// ErrInvalidOrder covers empty item lists, unknown or unavailable menu
	// items and non-positive quantities. No partial state is created.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidTransition is returned when the requested status change is
	// not allowed from the order's current stored status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrOrderNotFound is returned for unknown order ids and tokens.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUpstream signals a catalog or persistence failure. The operation is
	// aborted and queue state is left untouched.
	ErrUpstream = errors.New("upstream unavailable")
)

func invalidOrderf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOrder, fmt.Sprintf(format, args...))
}

func invalidTransition(from, to domain.OrderStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}
