package orders

import (
	"github.com/compia-store/api/internal/domain"
)

// canonicalNext encodes the single forward transition of the order
// lifecycle: processando, confirmado, enviado, concluido.
var canonicalNext = map[domain.OrderStatus]domain.OrderStatus{
	domain.OrderStatusProcessing: domain.OrderStatusConfirmed,
	domain.OrderStatusConfirmed:  domain.OrderStatusShipped,
	domain.OrderStatusShipped:    domain.OrderStatusCompleted,
}

var cancellable = map[domain.OrderStatus]struct{}{
	domain.OrderStatusProcessing: {},
	domain.OrderStatusConfirmed:  {},
	domain.OrderStatusShipped:    {},
}

// NextStatus returns the canonical forward transition for current, or
// false when current is terminal.
func NextStatus(current domain.OrderStatus) (domain.OrderStatus, bool) {
	next, ok := canonicalNext[current]
	return next, ok
}

// CanCancel reports whether an order in the given status may still be
// cancelled.
func CanCancel(current domain.OrderStatus) bool {
	_, ok := cancellable[current]
	return ok
}

// IsTerminal reports whether no transition out of the status exists.
func IsTerminal(current domain.OrderStatus) bool {
	return current == domain.OrderStatusCompleted || current == domain.OrderStatusCanceled
}

// CanTransition reports whether moving from current to target is legal.
// The only legal moves are the canonical next status and cancellation
// from a cancellable status.
func CanTransition(current, target domain.OrderStatus) bool {
	if target == domain.OrderStatusCanceled {
		return CanCancel(current)
	}
	next, ok := canonicalNext[current]
	return ok && next == target
}
