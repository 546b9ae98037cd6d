package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compia-store/api/internal/domain"
	"github.com/compia-store/api/internal/repositories"
)

type stubOrderRepo struct {
	createFn       func(ctx context.Context, order domain.Order) (domain.Order, error)
	updateStatusFn func(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	cancelFn       func(ctx context.Context, orderID string) (domain.Order, error)
	listFn         func(ctx context.Context) ([]domain.Order, error)
	updateCalls    int
	cancelCalls    int
}

func (s *stubOrderRepo) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.createFn == nil {
		return order, nil
	}
	return s.createFn(ctx, order)
}

func (s *stubOrderRepo) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	s.updateCalls++
	if s.updateStatusFn == nil {
		return domain.Order{ID: orderID, Status: status}, nil
	}
	return s.updateStatusFn(ctx, orderID, status)
}

func (s *stubOrderRepo) CancelOrder(ctx context.Context, orderID string) (domain.Order, error) {
	s.cancelCalls++
	if s.cancelFn == nil {
		return domain.Order{ID: orderID, Status: domain.OrderStatusCanceled}, nil
	}
	return s.cancelFn(ctx, orderID)
}

func (s *stubOrderRepo) ListOrders(ctx context.Context) ([]domain.Order, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

type stubSink struct {
	notifications []domain.Notification
	notifyErr     error
}

func (s *stubSink) Notify(_ context.Context, notification domain.Notification) error {
	s.notifications = append(s.notifications, notification)
	return s.notifyErr
}

func newStatusService(t *testing.T, repo repositories.OrderRepository, sink repositories.NotificationSink) *StatusService {
	t.Helper()
	svc, err := NewStatusService(StatusServiceDeps{Orders: repo, Notifier: sink})
	require.NoError(t, err)
	return svc
}

func TestAdvanceStatusHappyPath(t *testing.T) {
	repo := &stubOrderRepo{}
	sink := &stubSink{}
	svc := newStatusService(t, repo, sink)

	order := domain.Order{ID: "ord-1", Status: domain.OrderStatusProcessing}
	updated, err := svc.AdvanceStatus(context.Background(), order, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, updated.Status)

	require.Len(t, sink.notifications, 1)
	assert.Equal(t, domain.RoleCustomer, sink.notifications[0].Role)
	assert.Equal(t, NotificationOrderStatus, sink.notifications[0].Type)
	assert.Equal(t, "O pedido ord-1 foi confirmado e será preparado para envio.", sink.notifications[0].Message)
}

func TestAdvanceStatusRejectsIllegalTargets(t *testing.T) {
	repo := &stubOrderRepo{}
	svc := newStatusService(t, repo, &stubSink{})

	order := domain.Order{ID: "ord-1", Status: domain.OrderStatusProcessing}

	_, err := svc.AdvanceStatus(context.Background(), order, domain.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	// Cancellation is not an advancement.
	_, err = svc.AdvanceStatus(context.Background(), order, domain.OrderStatusCanceled)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	done := domain.Order{ID: "ord-2", Status: domain.OrderStatusCompleted}
	_, err = svc.AdvanceStatus(context.Background(), done, domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	assert.Zero(t, repo.updateCalls, "illegal transitions must not reach the repository")
}

func TestCancelFromCancellableStatuses(t *testing.T) {
	for _, status := range []domain.OrderStatus{
		domain.OrderStatusProcessing,
		domain.OrderStatusConfirmed,
		domain.OrderStatusShipped,
	} {
		repo := &stubOrderRepo{}
		sink := &stubSink{}
		svc := newStatusService(t, repo, sink)

		cancelled, err := svc.Cancel(context.Background(), domain.Order{ID: "ord-1", Status: status})
		require.NoError(t, err, "cancel from %s", status)
		assert.Equal(t, domain.OrderStatusCanceled, cancelled.Status)

		require.Len(t, sink.notifications, 2)
		assert.Equal(t, domain.RoleCustomer, sink.notifications[0].Role)
		assert.Equal(t, domain.RoleAdmin, sink.notifications[1].Role)
		assert.Equal(t, NotificationOrderCancelled, sink.notifications[1].Type)
	}
}

func TestCancelRejectsTerminalStatuses(t *testing.T) {
	repo := &stubOrderRepo{}
	svc := newStatusService(t, repo, &stubSink{})

	for _, status := range []domain.OrderStatus{domain.OrderStatusCompleted, domain.OrderStatusCanceled} {
		_, err := svc.Cancel(context.Background(), domain.Order{ID: "ord-1", Status: status})
		assert.ErrorIs(t, err, ErrIllegalTransition, "cancel from %s", status)
	}
	assert.Zero(t, repo.cancelCalls)
}

func TestStatusServiceTranslatesRepoErrors(t *testing.T) {
	repo := &stubOrderRepo{
		updateStatusFn: func(context.Context, string, domain.OrderStatus) (domain.Order, error) {
			return domain.Order{}, repositories.NewOrderError("orders.call", repositories.OrderErrorNotFound, "", nil)
		},
	}
	svc := newStatusService(t, repo, &stubSink{})

	order := domain.Order{ID: "missing", Status: domain.OrderStatusProcessing}
	_, err := svc.AdvanceStatus(context.Background(), order, domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	repo.updateStatusFn = func(context.Context, string, domain.OrderStatus) (domain.Order, error) {
		return domain.Order{}, repositories.NewOrderError("orders.call", repositories.OrderErrorUnavailable, "", nil)
	}
	_, err = svc.AdvanceStatus(context.Background(), order, domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrOrderUnavailable)
}

func TestStatusServiceNotificationFailureIsNonFatal(t *testing.T) {
	sink := &stubSink{notifyErr: assert.AnError}
	svc := newStatusService(t, &stubOrderRepo{}, sink)

	order := domain.Order{ID: "ord-1", Status: domain.OrderStatusProcessing}
	_, err := svc.AdvanceStatus(context.Background(), order, domain.OrderStatusConfirmed)
	assert.NoError(t, err)
}
