package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/compia-store/api/internal/cep"
	"github.com/compia-store/api/internal/domain"
	"github.com/compia-store/api/internal/orders"
	"github.com/compia-store/api/internal/payments"
	"github.com/compia-store/api/internal/platform/httpx"
)

const maxCheckoutRequestBody = 64 * 1024

// ShippingEstimator produces freight quotes for carts.
type ShippingEstimator interface {
	Estimate(ctx context.Context, cart domain.Cart, destinationCEP string) domain.ShippingQuote
	QuoteForMethod(ctx context.Context, method domain.DeliveryMethod, cart domain.Cart, destinationCEP string) domain.ShippingQuote
}

// AddressLookup resolves a CEP so the storefront can prefill the address form.
type AddressLookup interface {
	Lookup(ctx context.Context, code string) (cep.Address, error)
}

// PaymentService routes payment creation and confirmation to gateway adapters.
type PaymentService interface {
	Options() payments.Options
	CreatePayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error)
	ConfirmPayment(ctx context.Context, gateway domain.PaymentGateway, transactionID string) (domain.PaymentResult, error)
}

// OrderAssembler turns a checkout into a persisted order.
type OrderAssembler interface {
	Assemble(ctx context.Context, cmd orders.AssembleCommand) (domain.Order, error)
}

// CheckoutHandlers exposes the checkout flow: freight quote, payment options,
// payment creation and confirmation, and final order placement.
type CheckoutHandlers struct {
	shipping  ShippingEstimator
	payments  PaymentService
	assembler OrderAssembler
	addresses AddressLookup
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(shipping ShippingEstimator, paymentSvc PaymentService, assembler OrderAssembler, addresses AddressLookup) *CheckoutHandlers {
	return &CheckoutHandlers{
		shipping:  shipping,
		payments:  paymentSvc,
		assembler: assembler,
		addresses: addresses,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/address/{cep}", h.lookupAddress)
	r.Post("/shipping-quote", h.shippingQuote)
	r.Get("/payment-options", h.paymentOptions)
	r.Post("/payments", h.createPayment)
	r.Post("/payments/{transactionID}/confirm", h.confirmPayment)
	r.Post("/orders", h.createOrder)
}

type addressResponse struct {
	CEP       string `json:"cep"`
	Street    string `json:"street"`
	District  string `json:"district"`
	City      string `json:"city"`
	State     string `json:"state"`
	Formatted string `json:"formatted"`
}

func (h *CheckoutHandlers) lookupAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		httpx.WriteError(ctx, w, httpx.NewError("address_unavailable", "address service unavailable", http.StatusServiceUnavailable))
		return
	}

	addr, err := h.addresses.Lookup(ctx, chi.URLParam(r, "cep"))
	switch {
	case errors.Is(err, cep.ErrInvalidCEP):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_cep", "cep must have eight digits", http.StatusBadRequest))
		return
	case err != nil:
		httpx.WriteError(ctx, w, httpx.NewError("address_not_found", "could not resolve cep", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, addressResponse{
		CEP:       addr.CEP,
		Street:    addr.Street,
		District:  addr.District,
		City:      addr.City,
		State:     addr.State,
		Formatted: addr.Compose(),
	})
}

type shippingQuoteRequest struct {
	Items []cartItemPayload `json:"items"`
	CEP   string            `json:"cep"`
}

func (h *CheckoutHandlers) shippingQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_unavailable", "shipping service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req shippingQuoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	cart, err := cartFromPayload(req.Items)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if len(cart) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "items are required", http.StatusBadRequest))
		return
	}

	quote := h.shipping.Estimate(ctx, cart, strings.TrimSpace(req.CEP))
	writeJSONResponse(w, http.StatusOK, quoteToPayload(quote))
}

type paymentOptionsResponse struct {
	Gateways   []string `json:"gateways"`
	CardBrands []string `json:"cardBrands"`
	Methods    []string `json:"methods"`
}

func (h *CheckoutHandlers) paymentOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	options := h.payments.Options()
	resp := paymentOptionsResponse{
		Gateways:   make([]string, 0, len(options.Gateways)),
		CardBrands: options.CardBrands,
		Methods:    make([]string, 0, len(options.Methods)),
	}
	for _, gateway := range options.Gateways {
		resp.Gateways = append(resp.Gateways, string(gateway))
	}
	for _, method := range options.Methods {
		resp.Methods = append(resp.Methods, string(method))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

type cardPayload struct {
	HolderName string `json:"holderName"`
	Number     string `json:"number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	Brand      string `json:"brand,omitempty"`
}

type createPaymentRequest struct {
	Gateway  string          `json:"gateway"`
	Method   string          `json:"method"`
	Amount   float64         `json:"amount"`
	Currency string          `json:"currency"`
	Customer customerPayload `json:"customer"`
	Card     *cardPayload    `json:"card,omitempty"`
}

type pixPayload struct {
	PixKey     string `json:"pixKey"`
	QRCodeText string `json:"qrCodeText"`
	QRCodeURL  string `json:"qrCodeUrl"`
	ExpiresAt  string `json:"expiresAt"`
}

type paymentResultResponse struct {
	TransactionID string      `json:"transactionId"`
	Gateway       string      `json:"gateway"`
	Method        string      `json:"method"`
	Status        string      `json:"status"`
	Message       string      `json:"message,omitempty"`
	Pix           *pixPayload `json:"pix,omitempty"`
}

func paymentResultToResponse(result domain.PaymentResult) paymentResultResponse {
	resp := paymentResultResponse{
		TransactionID: result.TransactionID,
		Gateway:       string(result.Gateway),
		Method:        string(result.Method),
		Status:        string(result.Status),
		Message:       result.Message,
	}
	if result.Pix != nil {
		resp.Pix = &pixPayload{
			PixKey:     result.Pix.PixKey,
			QRCodeText: result.Pix.QRCodeText,
			QRCodeURL:  result.Pix.QRCodeURL,
			ExpiresAt:  formatTimestamp(result.Pix.ExpiresAt),
		}
	}
	return resp
}

func (h *CheckoutHandlers) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	paymentReq := domain.PaymentRequest{
		Gateway:  domain.PaymentGateway(strings.ToLower(strings.TrimSpace(req.Gateway))),
		Method:   domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.Method))),
		Amount:   decimal.NewFromFloat(req.Amount),
		Currency: strings.TrimSpace(req.Currency),
		Customer: domain.Customer{
			Name:  strings.TrimSpace(req.Customer.Name),
			Email: strings.TrimSpace(req.Customer.Email),
		},
	}
	if req.Card != nil {
		paymentReq.Card = &domain.CardDetails{
			HolderName: strings.TrimSpace(req.Card.HolderName),
			Number:     strings.TrimSpace(req.Card.Number),
			Expiry:     strings.TrimSpace(req.Card.Expiry),
			CVV:        strings.TrimSpace(req.Card.CVV),
			Brand:      strings.ToLower(strings.TrimSpace(req.Card.Brand)),
		}
	}

	result, err := h.payments.CreatePayment(ctx, paymentReq)
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, paymentResultToResponse(result))
}

type confirmPaymentRequest struct {
	Gateway string `json:"gateway"`
}

func (h *CheckoutHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	transactionID := strings.TrimSpace(chi.URLParam(r, "transactionID"))
	if transactionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "transaction id is required", http.StatusBadRequest))
		return
	}

	var req confirmPaymentRequest
	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	switch {
	case errors.Is(err, errEmptyBody):
		// Confirmation defaults to the configured gateway.
	case err != nil:
		h.writeBodyError(ctx, w, err)
		return
	default:
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	}

	gateway := domain.PaymentGateway(strings.ToLower(strings.TrimSpace(req.Gateway)))
	result, err := h.payments.ConfirmPayment(ctx, gateway, transactionID)
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentResultToResponse(result))
}

type createOrderRequest struct {
	Items          []cartItemPayload     `json:"items"`
	DeliveryMethod string                `json:"deliveryMethod"`
	ShippingQuote  *shippingQuotePayload `json:"shippingQuote,omitempty"`
	Payment        *orderPaymentPayload  `json:"payment,omitempty"`
	Customer       customerPayload       `json:"customer"`
}

func (h *CheckoutHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.assembler == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	cart, err := cartFromPayload(req.Items)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	method := domain.DeliveryMethod(strings.ToLower(strings.TrimSpace(req.DeliveryMethod)))
	switch method {
	case domain.DeliveryShipping, domain.DeliveryPickup, domain.DeliveryDigital:
	case "":
		method = domain.DeliveryShipping
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown delivery method "+string(method), http.StatusBadRequest))
		return
	}

	cmd := orders.AssembleCommand{
		Items:          cart,
		DeliveryMethod: method,
		Customer: domain.Customer{
			Name:  strings.TrimSpace(req.Customer.Name),
			Email: strings.TrimSpace(req.Customer.Email),
		},
	}
	if req.ShippingQuote != nil {
		cmd.ShippingQuote = &domain.ShippingQuote{
			Cost:    domain.RoundBRL(decimal.NewFromFloat(req.ShippingQuote.Cost)),
			Days:    req.ShippingQuote.Days,
			Service: strings.TrimSpace(req.ShippingQuote.Service),
		}
	}
	if req.Payment != nil {
		cmd.Payment = domain.PaymentResult{
			TransactionID: strings.TrimSpace(req.Payment.TransactionID),
			Gateway:       domain.PaymentGateway(strings.ToLower(strings.TrimSpace(req.Payment.Gateway))),
			Method:        domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.Payment.Method))),
			Status:        domain.PaymentStatus(strings.ToLower(strings.TrimSpace(req.Payment.Status))),
		}
	}

	order, err := h.assembler.Assemble(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderToResponse(order))
}

func (h *CheckoutHandlers) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		h.writeBodyError(ctx, w, err)
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func (h *CheckoutHandlers) writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
}

// writePaymentError maps gateway failures onto distinct HTTP statuses so the
// storefront can tell a rejected payload from a degraded gateway.
func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payments.ErrValidation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payment", err.Error(), http.StatusBadRequest))
	case errors.Is(err, payments.ErrTimeout):
		httpx.WriteError(ctx, w, httpx.NewError("payment_timeout", "payment gateway timed out; retry shortly", http.StatusGatewayTimeout))
	case errors.Is(err, payments.ErrConnectivity):
		httpx.WriteError(ctx, w, httpx.NewError("payment_unreachable", "payment gateway unreachable; check backend connectivity", http.StatusBadGateway))
	case errors.Is(err, payments.ErrUnsupportedGateway):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_gateway", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to process payment", http.StatusInternalServerError))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "cart is empty", http.StatusBadRequest))
	case errors.Is(err, orders.ErrIllegalTransition):
		httpx.WriteError(ctx, w, httpx.NewError("illegal_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, orders.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, orders.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
