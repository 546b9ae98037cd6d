package domain

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ItemType classifies catalogue items sold by the store.
type ItemType string

const (
	// ItemTypeBook is a physical printed book.
	ItemTypeBook ItemType = "book"
	// ItemTypeEbook is a digital download; it never ships.
	ItemTypeEbook ItemType = "ebook"
	// ItemTypeKit is a physical bundle (book plus extras).
	ItemTypeKit ItemType = "kit"
)

// Digital reports whether the item requires no physical delivery.
func (t ItemType) Digital() bool {
	return t == ItemTypeEbook
}

// UnitWeightKg approximates the shipping weight of one physical item.
var UnitWeightKg = decimal.RequireFromString("0.5")

// CartItem is a single line in the customer's cart.
type CartItem struct {
	ID       string
	Title    string
	Author   string
	Type     ItemType
	Price    decimal.Decimal
	Quantity int
	Image    string
}

// LineTotal returns price multiplied by quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart holds the items being checked out.
type Cart []CartItem

// Subtotal sums every line total, digital and physical alike.
func (c Cart) Subtotal() decimal.Decimal {
	return lo.Reduce(c, func(sum decimal.Decimal, item CartItem, _ int) decimal.Decimal {
		return sum.Add(item.LineTotal())
	}, decimal.Zero)
}

// PhysicalItems filters out digital-only lines.
func (c Cart) PhysicalItems() Cart {
	return lo.Filter(c, func(item CartItem, _ int) bool {
		return !item.Type.Digital()
	})
}

// HasPhysicalItems reports whether anything in the cart needs delivery.
func (c Cart) HasPhysicalItems() bool {
	return lo.SomeBy(c, func(item CartItem) bool {
		return !item.Type.Digital()
	})
}

// HasDigitalItems reports whether the cart carries at least one digital line.
func (c Cart) HasDigitalItems() bool {
	return lo.SomeBy(c, func(item CartItem) bool {
		return item.Type.Digital()
	})
}

// PhysicalWeightKg approximates total parcel weight from physical quantities.
func (c Cart) PhysicalWeightKg() decimal.Decimal {
	return lo.Reduce(c.PhysicalItems(), func(sum decimal.Decimal, item CartItem, _ int) decimal.Decimal {
		return sum.Add(UnitWeightKg.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}, decimal.Zero)
}

// ShippingQuote is the outcome of a shipping estimation.
type ShippingQuote struct {
	Cost    decimal.Decimal
	Days    int
	Service string
}

// DeliveryMethod selects how a confirmed order reaches the customer.
type DeliveryMethod string

const (
	// DeliveryShipping delivers by carrier to the informed address.
	DeliveryShipping DeliveryMethod = "shipping"
	// DeliveryPickup hands the order over at the store counter.
	DeliveryPickup DeliveryMethod = "pickup"
	// DeliveryDigital applies to all-digital carts; nothing ships.
	DeliveryDigital DeliveryMethod = "digital"
)

// PaymentGateway identifies the processor handling a charge.
type PaymentGateway string

const (
	GatewayMercadoPago PaymentGateway = "mercadopago"
	GatewayPagSeguro   PaymentGateway = "pagseguro"
	GatewayStripe      PaymentGateway = "stripe"
	GatewayPayPal      PaymentGateway = "paypal"
)

// PaymentGateways lists every supported gateway.
func PaymentGateways() []PaymentGateway {
	return []PaymentGateway{GatewayMercadoPago, GatewayPagSeguro, GatewayStripe, GatewayPayPal}
}

// PaymentMethod is the instrument used to pay.
type PaymentMethod string

const (
	// MethodCard settles synchronously on creation.
	MethodCard PaymentMethod = "card"
	// MethodPix settles in two phases: generate, then confirm.
	MethodPix PaymentMethod = "pix"
)

// PaymentStatus is the normalised state of a payment across gateways.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

// Customer identifies who placed the order.
type Customer struct {
	Name  string
	Email string
}

// CardDetails carries the card fields required for method=card.
type CardDetails struct {
	HolderName string
	Number     string
	Expiry     string
	CVV        string
	Brand      string
}

// Complete reports whether every field needed to attempt a charge is present.
func (c CardDetails) Complete() bool {
	return strings.TrimSpace(c.HolderName) != "" &&
		strings.TrimSpace(c.Number) != "" &&
		strings.TrimSpace(c.Expiry) != "" &&
		strings.TrimSpace(c.CVV) != ""
}

// PaymentRequest is the input to payment creation.
type PaymentRequest struct {
	Gateway  PaymentGateway
	Method   PaymentMethod
	Amount   decimal.Decimal
	Currency string
	Customer Customer
	Card     *CardDetails
}

// PixData is returned alongside a pending PIX payment so the UI can render
// the QR code and expiry countdown.
type PixData struct {
	PixKey     string
	QRCodeText string
	QRCodeURL  string
	ExpiresAt  time.Time
}

// PaymentResult is the normalised gateway response for create and confirm.
type PaymentResult struct {
	TransactionID string
	Gateway       PaymentGateway
	Method        PaymentMethod
	Status        PaymentStatus
	Message       string
	Pix           *PixData
}

// OrderPayment is the payment summary stored on a persisted order.
type OrderPayment struct {
	TransactionID string
	Gateway       PaymentGateway
	Method        PaymentMethod
	Status        PaymentStatus
}

// OrderStatus enumerates the lifecycle states of an order. The wire values
// are the Portuguese labels the storefront displays.
type OrderStatus string

const (
	// OrderStatusProcessing is the initial state right after checkout.
	OrderStatusProcessing OrderStatus = "processando"
	// OrderStatusConfirmed means the order was accepted and is being prepared.
	OrderStatusConfirmed OrderStatus = "confirmado"
	// OrderStatusShipped means the parcel left the warehouse.
	OrderStatusShipped OrderStatus = "enviado"
	// OrderStatusCompleted is the terminal happy-path state.
	OrderStatusCompleted OrderStatus = "concluido"
	// OrderStatusCanceled is terminal; orders are never deleted.
	OrderStatusCanceled OrderStatus = "cancelado"
)

var validOrderStatuses = map[OrderStatus]struct{}{
	OrderStatusProcessing: {},
	OrderStatusConfirmed:  {},
	OrderStatusShipped:    {},
	OrderStatusCompleted:  {},
	OrderStatusCanceled:   {},
}

// ToOrderStatus parses a wire value into a known status.
func ToOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	_, ok := validOrderStatuses[status]
	return status, ok
}

// Order is the persisted outcome of a checkout. Once created it is owned by
// the order service; this codebase only proposes transitions.
type Order struct {
	ID             string
	Date           time.Time
	Items          Cart
	Subtotal       decimal.Decimal
	ShippingCost   decimal.Decimal
	Total          decimal.Decimal
	DeliveryMethod DeliveryMethod
	ShippingInfo   *ShippingQuote
	PickupAddress  *string
	Customer       Customer
	Payment        *OrderPayment
	Status         OrderStatus

	// Unsynced marks orders that could not be persisted remotely and exist
	// only in the local cache until a reconciliation pass runs.
	Unsynced bool
}

// NotificationRole selects which audience a notification targets.
type NotificationRole string

const (
	RoleCustomer NotificationRole = "customer"
	RoleAdmin    NotificationRole = "admin"
)

// Notification is a fire-and-forget event delivered to the notification sink.
type Notification struct {
	ID      string
	Role    NotificationRole
	OrderID string
	Type    string
	Message string
}

// RoundBRL rounds an amount to whole cents, half away from zero. This mirrors
// the storefront's historical Math.round(x*100)/100 behaviour for the
// non-negative amounts handled here.
func RoundBRL(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
