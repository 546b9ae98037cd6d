package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/compia-store/api/internal/domain"
)

func TestNextStatusChain(t *testing.T) {
	next, ok := NextStatus(domain.OrderStatusProcessing)
	assert.True(t, ok)
	assert.Equal(t, domain.OrderStatusConfirmed, next)

	next, ok = NextStatus(domain.OrderStatusConfirmed)
	assert.True(t, ok)
	assert.Equal(t, domain.OrderStatusShipped, next)

	next, ok = NextStatus(domain.OrderStatusShipped)
	assert.True(t, ok)
	assert.Equal(t, domain.OrderStatusCompleted, next)

	for _, terminal := range []domain.OrderStatus{domain.OrderStatusCompleted, domain.OrderStatusCanceled} {
		_, ok = NextStatus(terminal)
		assert.False(t, ok, "terminal status %s must have no next", terminal)
	}
}

func TestCanCancel(t *testing.T) {
	assert.True(t, CanCancel(domain.OrderStatusProcessing))
	assert.True(t, CanCancel(domain.OrderStatusConfirmed))
	assert.True(t, CanCancel(domain.OrderStatusShipped))
	assert.False(t, CanCancel(domain.OrderStatusCompleted))
	assert.False(t, CanCancel(domain.OrderStatusCanceled))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(domain.OrderStatusCompleted))
	assert.True(t, IsTerminal(domain.OrderStatusCanceled))
	assert.False(t, IsTerminal(domain.OrderStatusProcessing))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(domain.OrderStatusProcessing, domain.OrderStatusConfirmed))
	assert.True(t, CanTransition(domain.OrderStatusShipped, domain.OrderStatusCanceled))

	// Skipping ahead and moving backwards are both illegal.
	assert.False(t, CanTransition(domain.OrderStatusProcessing, domain.OrderStatusShipped))
	assert.False(t, CanTransition(domain.OrderStatusShipped, domain.OrderStatusConfirmed))
	assert.False(t, CanTransition(domain.OrderStatusCompleted, domain.OrderStatusCanceled))
	assert.False(t, CanTransition(domain.OrderStatusCanceled, domain.OrderStatusConfirmed))
}
