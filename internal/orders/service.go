package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/compia-store/api/internal/domain"
	"github.com/compia-store/api/internal/repositories"
)

var (
	// ErrIllegalTransition indicates the proposed status change violates the
	// lifecycle graph. The order is left unchanged.
	ErrIllegalTransition = errors.New("orders: illegal status transition")
	// ErrOrderNotFound indicates the order does not exist remotely.
	ErrOrderNotFound = errors.New("orders: order not found")
	// ErrOrderUnavailable indicates the order service could not be reached.
	ErrOrderUnavailable = errors.New("orders: order service unavailable")
)

// StatusServiceDeps wires the dependencies of the status service.
type StatusServiceDeps struct {
	Orders   repositories.OrderRepository
	Notifier repositories.NotificationSink
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// StatusService applies lifecycle transitions to persisted orders and
// emits the customer and admin notifications that go with them.
type StatusService struct {
	orders   repositories.OrderRepository
	notifier repositories.NotificationSink
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewStatusService constructs a StatusService validating required dependencies.
func NewStatusService(deps StatusServiceDeps) (*StatusService, error) {
	if deps.Orders == nil {
		return nil, errors.New("status service: order repository is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("status service: notification sink is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &StatusService{
		orders:   deps.Orders,
		notifier: deps.Notifier,
		logger:   logger,
	}, nil
}

// AdvanceStatus moves an order to the given target, which must be the
// canonical next status. Cancellation goes through Cancel.
func (s *StatusService) AdvanceStatus(ctx context.Context, order domain.Order, target domain.OrderStatus) (domain.Order, error) {
	if target == domain.OrderStatusCanceled || !CanTransition(order.Status, target) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, target)
	}

	updated, err := s.orders.UpdateStatus(ctx, order.ID, target)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	s.notify(ctx, domain.Notification{
		Role:    domain.RoleCustomer,
		OrderID: updated.ID,
		Type:    NotificationOrderStatus,
		Message: statusMessage(updated.ID, target),
	})
	s.logger(ctx, "orders.status_advanced", map[string]any{
		"orderId": updated.ID,
		"from":    order.Status,
		"to":      target,
	})
	return updated, nil
}

// Cancel moves an order to its terminal cancelled state, allowed from
// processando, confirmado and enviado.
func (s *StatusService) Cancel(ctx context.Context, order domain.Order) (domain.Order, error) {
	if !CanCancel(order.Status) {
		return domain.Order{}, fmt.Errorf("%w: cancel from %s", ErrIllegalTransition, order.Status)
	}

	updated, err := s.orders.CancelOrder(ctx, order.ID)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	s.notify(ctx, domain.Notification{
		Role:    domain.RoleCustomer,
		OrderID: updated.ID,
		Type:    NotificationOrderStatus,
		Message: statusMessage(updated.ID, domain.OrderStatusCanceled),
	})
	s.notify(ctx, domain.Notification{
		Role:    domain.RoleAdmin,
		OrderID: updated.ID,
		Type:    NotificationOrderCancelled,
		Message: cancelRequestedAdminMessage(updated.ID),
	})
	s.logger(ctx, "orders.cancelled", map[string]any{"orderId": updated.ID})
	return updated, nil
}

// ListOrders fetches the orders visible to the caller.
func (s *StatusService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	listed, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return listed, nil
}

// notify delivers a notification best-effort; failures are logged, never
// surfaced to the caller.
func (s *StatusService) notify(ctx context.Context, notification domain.Notification) {
	if err := s.notifier.Notify(ctx, notification); err != nil {
		s.logger(ctx, "orders.notify_failed", map[string]any{
			"orderId": notification.OrderID,
			"role":    notification.Role,
			"error":   err.Error(),
		})
	}
}

func (s *StatusService) translateRepoError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
}
