package localcache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/compia-store/api/internal/domain"
)

// ErrNotCached indicates the order is not held by the cache.
var ErrNotCached = errors.New("localcache: order not cached")

// OrderCache keeps orders that failed remote persistence in memory until a
// reconciliation pass pushes them to the order service. It replaces the
// ambient client-side fallback storage with an explicit sync contract.
type OrderCache struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewOrderCache constructs an empty OrderCache.
func NewOrderCache() *OrderCache {
	return &OrderCache{orders: make(map[string]domain.Order)}
}

// Put stores or replaces an order in the cache.
func (c *OrderCache) Put(_ context.Context, order domain.Order) error {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("localcache: order id is required")
	}
	c.mu.Lock()
	c.orders[id] = order
	c.mu.Unlock()
	return nil
}

// PendingSync returns the cached orders still flagged as unsynced, oldest first.
func (c *OrderCache) PendingSync(_ context.Context) ([]domain.Order, error) {
	c.mu.RLock()
	pending := make([]domain.Order, 0, len(c.orders))
	for _, order := range c.orders {
		if order.Unsynced {
			pending = append(pending, order)
		}
	}
	c.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Date.Equal(pending[j].Date) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].Date.Before(pending[j].Date)
	})
	return pending, nil
}

// MarkSynced clears the unsynced flag once the order reached the remote store.
func (c *OrderCache) MarkSynced(_ context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok {
		return ErrNotCached
	}
	order.Unsynced = false
	c.orders[orderID] = order
	return nil
}
