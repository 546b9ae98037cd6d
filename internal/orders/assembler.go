package orders

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/compia-store/api/internal/domain"
	"github.com/compia-store/api/internal/repositories"
)

// PickupAddress is the store counter shown on pickup orders.
const PickupAddress = "Av. Paulista, 1000 - São Paulo, SP. Seg a Sex, 9h às 18h."

const localOrderIDPrefix = "ord_"

// ErrEmptyCart indicates checkout was attempted with nothing in the cart.
var ErrEmptyCart = errors.New("orders: cart is empty")

// AssembleCommand carries everything needed to build and persist an order.
type AssembleCommand struct {
	Items          domain.Cart
	DeliveryMethod domain.DeliveryMethod
	ShippingQuote  *domain.ShippingQuote
	Payment        domain.PaymentResult
	Customer       domain.Customer
}

// AssemblerDeps wires the dependencies of the order assembler.
type AssemblerDeps struct {
	Orders   repositories.OrderRepository
	Cache    repositories.OrderCache
	Notifier repositories.NotificationSink
	Clock    func() time.Time
	IDGen    func() string
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// Assembler composes cart, shipping and payment results into a persisted
// order. When the order service is down it falls back to a locally
// identified order so the captured payment is never lost.
type Assembler struct {
	orders   repositories.OrderRepository
	cache    repositories.OrderCache
	notifier repositories.NotificationSink
	now      func() time.Time
	idGen    func() string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewAssembler constructs an Assembler validating required dependencies.
func NewAssembler(deps AssemblerDeps) (*Assembler, error) {
	if deps.Orders == nil {
		return nil, errors.New("order assembler: order repository is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("order assembler: order cache is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("order assembler: notification sink is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return localOrderIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Assembler{
		orders:   deps.Orders,
		cache:    deps.Cache,
		notifier: deps.Notifier,
		now: func() time.Time {
			return clock().UTC()
		},
		idGen:  idGen,
		logger: logger,
	}, nil
}

// Assemble builds the order and persists it, degrading to the local cache
// when the order service rejects or cannot be reached.
func (a *Assembler) Assemble(ctx context.Context, cmd AssembleCommand) (domain.Order, error) {
	if len(cmd.Items) == 0 {
		return domain.Order{}, ErrEmptyCart
	}

	order := a.build(cmd)

	persisted, err := a.orders.CreateOrder(ctx, order)
	if err != nil {
		a.logger(ctx, "orders.persist_failed", map[string]any{"error": err.Error()})
		return a.fallback(ctx, order)
	}
	persisted.Unsynced = false

	a.notifyCreated(ctx, persisted)
	a.logger(ctx, "orders.created", map[string]any{
		"orderId": persisted.ID,
		"total":   persisted.Total.StringFixed(2),
	})
	return persisted, nil
}

func (a *Assembler) build(cmd AssembleCommand) domain.Order {
	method := cmd.DeliveryMethod
	if !cmd.Items.HasPhysicalItems() {
		method = domain.DeliveryDigital
	}

	subtotal := cmd.Items.Subtotal()
	shippingCost := decimal.Zero
	var shippingInfo *domain.ShippingQuote
	var pickupAddress *string

	switch method {
	case domain.DeliveryShipping:
		if cmd.ShippingQuote != nil {
			quote := *cmd.ShippingQuote
			shippingInfo = &quote
			shippingCost = quote.Cost
		}
	case domain.DeliveryPickup:
		addr := PickupAddress
		pickupAddress = &addr
	}

	order := domain.Order{
		Date:           a.now(),
		Items:          cmd.Items,
		Subtotal:       domain.RoundBRL(subtotal),
		ShippingCost:   domain.RoundBRL(shippingCost),
		Total:          domain.RoundBRL(subtotal.Add(shippingCost)),
		DeliveryMethod: method,
		ShippingInfo:   shippingInfo,
		PickupAddress:  pickupAddress,
		Customer:       cmd.Customer,
		Status:         domain.OrderStatusProcessing,
	}
	if cmd.Payment.TransactionID != "" {
		order.Payment = &domain.OrderPayment{
			TransactionID: cmd.Payment.TransactionID,
			Gateway:       cmd.Payment.Gateway,
			Method:        cmd.Payment.Method,
			Status:        cmd.Payment.Status,
		}
	}
	return order
}

// fallback keeps the order locally with a synthetic id until a
// reconciliation pass can push it to the order service.
func (a *Assembler) fallback(ctx context.Context, order domain.Order) (domain.Order, error) {
	order.ID = a.idGen()
	order.Date = a.now()
	order.Status = domain.OrderStatusProcessing
	order.Unsynced = true

	if err := a.cache.Put(ctx, order); err != nil {
		a.logger(ctx, "orders.cache_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
	a.notifyCreated(ctx, order)
	a.logger(ctx, "orders.created_unsynced", map[string]any{"orderId": order.ID})
	return order, nil
}

// SyncPending replays locally cached orders against the order service,
// oldest first. Orders the service now accepts are marked synced; the
// first failure stops the pass so ordering is preserved on the next run.
// Returns how many orders were pushed.
func (a *Assembler) SyncPending(ctx context.Context) (int, error) {
	pending, err := a.cache.PendingSync(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, order := range pending {
		localID := order.ID
		order.ID = ""
		order.Unsynced = false

		persisted, err := a.orders.CreateOrder(ctx, order)
		if err != nil {
			a.logger(ctx, "orders.sync_failed", map[string]any{
				"orderId": localID,
				"error":   err.Error(),
			})
			return synced, err
		}
		if err := a.cache.MarkSynced(ctx, localID); err != nil {
			a.logger(ctx, "orders.sync_mark_failed", map[string]any{
				"orderId": localID,
				"error":   err.Error(),
			})
		}
		a.logger(ctx, "orders.synced", map[string]any{
			"localId": localID,
			"orderId": persisted.ID,
		})
		synced++
	}
	return synced, nil
}

func (a *Assembler) notifyCreated(ctx context.Context, order domain.Order) {
	for _, notification := range []domain.Notification{
		{
			Role:    domain.RoleCustomer,
			OrderID: order.ID,
			Type:    NotificationOrderCreated,
			Message: orderCreatedCustomerMessage(order.ID),
		},
		{
			Role:    domain.RoleAdmin,
			OrderID: order.ID,
			Type:    NotificationOrderCreated,
			Message: orderCreatedAdminMessage(order.ID, order.Total),
		},
	} {
		if err := a.notifier.Notify(ctx, notification); err != nil {
			a.logger(ctx, "orders.notify_failed", map[string]any{
				"orderId": order.ID,
				"role":    notification.Role,
				"error":   err.Error(),
			})
		}
	}
}
