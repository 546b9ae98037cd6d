package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/compia-store/api/internal/domain"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

type cartItemPayload struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Author   string  `json:"author,omitempty"`
	Type     string  `json:"type"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Image    string  `json:"image,omitempty"`
}

func (p cartItemPayload) toDomain() (domain.CartItem, error) {
	if strings.TrimSpace(p.ID) == "" {
		return domain.CartItem{}, errors.New("item id is required")
	}
	if p.Quantity <= 0 {
		return domain.CartItem{}, errors.New("item quantity must be positive")
	}
	if p.Price < 0 {
		return domain.CartItem{}, errors.New("item price must not be negative")
	}
	itemType := domain.ItemType(strings.ToLower(strings.TrimSpace(p.Type)))
	switch itemType {
	case domain.ItemTypeBook, domain.ItemTypeEbook, domain.ItemTypeKit:
	case "":
		itemType = domain.ItemTypeBook
	default:
		return domain.CartItem{}, errors.New("unknown item type " + string(itemType))
	}
	return domain.CartItem{
		ID:       strings.TrimSpace(p.ID),
		Title:    strings.TrimSpace(p.Title),
		Author:   strings.TrimSpace(p.Author),
		Type:     itemType,
		Price:    decimal.NewFromFloat(p.Price),
		Quantity: p.Quantity,
		Image:    strings.TrimSpace(p.Image),
	}, nil
}

func cartFromPayload(items []cartItemPayload) (domain.Cart, error) {
	cart := make(domain.Cart, 0, len(items))
	for _, item := range items {
		converted, err := item.toDomain()
		if err != nil {
			return nil, err
		}
		cart = append(cart, converted)
	}
	return cart, nil
}

func cartToPayload(cart domain.Cart) []cartItemPayload {
	items := make([]cartItemPayload, 0, len(cart))
	for _, item := range cart {
		items = append(items, cartItemPayload{
			ID:       item.ID,
			Title:    item.Title,
			Author:   item.Author,
			Type:     string(item.Type),
			Price:    item.Price.InexactFloat64(),
			Quantity: item.Quantity,
			Image:    item.Image,
		})
	}
	return items
}

type shippingQuotePayload struct {
	Cost    float64 `json:"cost"`
	Days    int     `json:"days"`
	Service string  `json:"service"`
}

func quoteToPayload(quote domain.ShippingQuote) shippingQuotePayload {
	return shippingQuotePayload{
		Cost:    quote.Cost.InexactFloat64(),
		Days:    quote.Days,
		Service: quote.Service,
	}
}

type orderResponse struct {
	ID             string                `json:"id"`
	Date           string                `json:"date"`
	Items          []cartItemPayload     `json:"items"`
	Subtotal       float64               `json:"subtotal"`
	ShippingCost   float64               `json:"shippingCost"`
	Total          float64               `json:"total"`
	DeliveryMethod string                `json:"deliveryMethod"`
	ShippingInfo   *shippingQuotePayload `json:"shippingInfo,omitempty"`
	PickupAddress  *string               `json:"pickupAddress,omitempty"`
	Customer       customerPayload       `json:"customer"`
	Payment        *orderPaymentPayload  `json:"payment,omitempty"`
	Status         string                `json:"status"`
	Unsynced       bool                  `json:"unsynced,omitempty"`
}

type customerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type orderPaymentPayload struct {
	TransactionID string `json:"transactionId"`
	Gateway       string `json:"gateway"`
	Method        string `json:"method"`
	Status        string `json:"status"`
}

func orderToResponse(order domain.Order) orderResponse {
	resp := orderResponse{
		ID:             order.ID,
		Date:           formatTimestamp(order.Date),
		Items:          cartToPayload(order.Items),
		Subtotal:       order.Subtotal.InexactFloat64(),
		ShippingCost:   order.ShippingCost.InexactFloat64(),
		Total:          order.Total.InexactFloat64(),
		DeliveryMethod: string(order.DeliveryMethod),
		PickupAddress:  order.PickupAddress,
		Customer:       customerPayload{Name: order.Customer.Name, Email: order.Customer.Email},
		Status:         string(order.Status),
		Unsynced:       order.Unsynced,
	}
	if order.ShippingInfo != nil {
		quote := quoteToPayload(*order.ShippingInfo)
		resp.ShippingInfo = &quote
	}
	if order.Payment != nil {
		resp.Payment = &orderPaymentPayload{
			TransactionID: order.Payment.TransactionID,
			Gateway:       string(order.Payment.Gateway),
			Method:        string(order.Payment.Method),
			Status:        string(order.Payment.Status),
		}
	}
	return resp
}
