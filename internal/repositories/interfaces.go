package repositories

import (
	"context"

	"github.com/compia-store/api/internal/domain"
)

// OrderRepository persists orders through the order service collaborator.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

// NotificationSink delivers fire-and-forget notification events.
type NotificationSink interface {
	Notify(ctx context.Context, notification domain.Notification) error
}

// OrderCache holds orders that could not be persisted remotely until a
// reconciliation pass syncs them.
type OrderCache interface {
	Put(ctx context.Context, order domain.Order) error
	PendingSync(ctx context.Context) ([]domain.Order, error)
	MarkSynced(ctx context.Context, orderID string) error
}

// RepositoryError wraps persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsUnavailable() bool
}
