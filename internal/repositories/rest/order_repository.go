package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/compia-store/api/internal/domain"
	"github.com/compia-store/api/internal/repositories"
)

// OrderRepositoryDeps wires the dependencies of the order-service client.
type OrderRepositoryDeps struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// OrderRepository implements repositories.OrderRepository against the
// order persistence collaborator.
type OrderRepository struct {
	baseURL string
	http    *http.Client
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderRepository constructs an OrderRepository validating required dependencies.
func NewOrderRepository(deps OrderRepositoryDeps) (*OrderRepository, error) {
	base := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if base == "" {
		return nil, errors.New("order repository: base URL is required")
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &OrderRepository{baseURL: base, http: httpClient, logger: logger}, nil
}

type orderItemPayload struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Author   string  `json:"author,omitempty"`
	Type     string  `json:"type"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Image    string  `json:"image,omitempty"`
}

type shippingInfoPayload struct {
	Cost    float64 `json:"cost"`
	Days    int     `json:"days"`
	Service string  `json:"service"`
}

type orderPaymentPayload struct {
	TransactionID string `json:"transaction_id"`
	Gateway       string `json:"gateway"`
	Method        string `json:"method"`
	Status        string `json:"status"`
}

type customerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type createOrderPayload struct {
	Items          []orderItemPayload   `json:"items"`
	Subtotal       float64              `json:"subtotal"`
	ShippingCost   float64              `json:"shipping_cost"`
	Total          float64              `json:"total"`
	DeliveryMethod string               `json:"delivery_method"`
	ShippingInfo   *shippingInfoPayload `json:"shipping_info,omitempty"`
	PickupAddress  *string              `json:"pickup_address,omitempty"`
	Customer       customerPayload      `json:"customer"`
	Payment        *orderPaymentPayload `json:"payment,omitempty"`
}

type orderResponsePayload struct {
	ID             string               `json:"id"`
	Date           *time.Time           `json:"date"`
	Items          []orderItemPayload   `json:"items"`
	Subtotal       float64              `json:"subtotal"`
	ShippingCost   float64              `json:"shippingCost"`
	Total          float64              `json:"total"`
	DeliveryMethod string               `json:"deliveryMethod"`
	ShippingInfo   *shippingInfoPayload `json:"shippingInfo"`
	PickupAddress  *string              `json:"pickupAddress"`
	Customer       customerPayload      `json:"customer"`
	Payment        *orderPaymentPayload `json:"payment"`
	Status         string               `json:"status"`
}

type statusUpdatePayload struct {
	Status string `json:"status"`
}

// CreateOrder posts a new order and returns it with the server-assigned id.
func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	payload := toCreatePayload(order)
	var out orderResponsePayload
	if err := r.call(ctx, http.MethodPost, "/orders", payload, &out); err != nil {
		return domain.Order{}, err
	}
	return fromOrderPayload(out), nil
}

// UpdateStatus patches the order to the given status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, repositories.NewOrderError("orders.update_status", repositories.OrderErrorRejected, "order id is required", nil)
	}
	var out orderResponsePayload
	path := "/orders/" + orderID + "/status"
	if err := r.call(ctx, http.MethodPatch, path, statusUpdatePayload{Status: string(status)}, &out); err != nil {
		return domain.Order{}, err
	}
	return fromOrderPayload(out), nil
}

// CancelOrder patches the order into its cancelled state.
func (r *OrderRepository) CancelOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, repositories.NewOrderError("orders.cancel", repositories.OrderErrorRejected, "order id is required", nil)
	}
	var out orderResponsePayload
	if err := r.call(ctx, http.MethodPatch, "/orders/"+orderID+"/cancel", nil, &out); err != nil {
		return domain.Order{}, err
	}
	return fromOrderPayload(out), nil
}

// ListOrders fetches every order visible to the caller.
func (r *OrderRepository) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var out []orderResponsePayload
	if err := r.call(ctx, http.MethodGet, "/orders", nil, &out); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(out))
	for _, payload := range out {
		orders = append(orders, fromOrderPayload(payload))
	}
	return orders, nil
}

func (r *OrderRepository) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return repositories.NewOrderError("orders.encode", repositories.OrderErrorRejected, err.Error(), err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return repositories.NewOrderError("orders.request", repositories.OrderErrorUnavailable, err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		r.logger(ctx, "orders.call_failed", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return repositories.NewOrderError("orders.call", repositories.OrderErrorUnavailable, err.Error(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return repositories.NewOrderError("orders.read", repositories.OrderErrorUnavailable, err.Error(), err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return repositories.NewOrderError("orders.call", repositories.OrderErrorNotFound, fmt.Sprintf("%s %s: not found", method, path), nil)
	case resp.StatusCode >= 500:
		return repositories.NewOrderError("orders.call", repositories.OrderErrorUnavailable, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return repositories.NewOrderError("orders.call", repositories.OrderErrorRejected, strings.TrimSpace(string(raw)), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return repositories.NewOrderError("orders.decode", repositories.OrderErrorUnavailable, err.Error(), err)
	}
	return nil
}

func toCreatePayload(order domain.Order) createOrderPayload {
	payload := createOrderPayload{
		Items:          make([]orderItemPayload, 0, len(order.Items)),
		Subtotal:       order.Subtotal.InexactFloat64(),
		ShippingCost:   order.ShippingCost.InexactFloat64(),
		Total:          order.Total.InexactFloat64(),
		DeliveryMethod: string(order.DeliveryMethod),
		PickupAddress:  order.PickupAddress,
		Customer:       customerPayload{Name: order.Customer.Name, Email: order.Customer.Email},
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ID:       item.ID,
			Title:    item.Title,
			Author:   item.Author,
			Type:     string(item.Type),
			Price:    item.Price.InexactFloat64(),
			Quantity: item.Quantity,
			Image:    item.Image,
		})
	}
	if order.ShippingInfo != nil {
		payload.ShippingInfo = &shippingInfoPayload{
			Cost:    order.ShippingInfo.Cost.InexactFloat64(),
			Days:    order.ShippingInfo.Days,
			Service: order.ShippingInfo.Service,
		}
	}
	if order.Payment != nil {
		payload.Payment = &orderPaymentPayload{
			TransactionID: order.Payment.TransactionID,
			Gateway:       string(order.Payment.Gateway),
			Method:        string(order.Payment.Method),
			Status:        string(order.Payment.Status),
		}
	}
	return payload
}

func fromOrderPayload(payload orderResponsePayload) domain.Order {
	order := domain.Order{
		ID:             payload.ID,
		Subtotal:       domain.RoundBRL(decimal.NewFromFloat(payload.Subtotal)),
		ShippingCost:   domain.RoundBRL(decimal.NewFromFloat(payload.ShippingCost)),
		Total:          domain.RoundBRL(decimal.NewFromFloat(payload.Total)),
		DeliveryMethod: domain.DeliveryMethod(payload.DeliveryMethod),
		PickupAddress:  payload.PickupAddress,
		Customer:       domain.Customer{Name: payload.Customer.Name, Email: payload.Customer.Email},
	}
	if payload.Date != nil {
		order.Date = payload.Date.UTC()
	}
	if status, ok := domain.ToOrderStatus(payload.Status); ok {
		order.Status = status
	} else {
		order.Status = domain.OrderStatusProcessing
	}
	for _, item := range payload.Items {
		order.Items = append(order.Items, domain.CartItem{
			ID:       item.ID,
			Title:    item.Title,
			Author:   item.Author,
			Type:     domain.ItemType(item.Type),
			Price:    domain.RoundBRL(decimal.NewFromFloat(item.Price)),
			Quantity: item.Quantity,
			Image:    item.Image,
		})
	}
	if payload.ShippingInfo != nil {
		order.ShippingInfo = &domain.ShippingQuote{
			Cost:    domain.RoundBRL(decimal.NewFromFloat(payload.ShippingInfo.Cost)),
			Days:    payload.ShippingInfo.Days,
			Service: payload.ShippingInfo.Service,
		}
	}
	if payload.Payment != nil {
		order.Payment = &domain.OrderPayment{
			TransactionID: payload.Payment.TransactionID,
			Gateway:       domain.PaymentGateway(payload.Payment.Gateway),
			Method:        domain.PaymentMethod(payload.Payment.Method),
			Status:        domain.PaymentStatus(payload.Payment.Status),
		}
	}
	return order
}
