package payments

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

	"github.com/compia-store/api/internal/domain"
)

// RESTGatewayDeps wires the dependencies of the payment-service client.
type RESTGatewayDeps struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// RESTGateway talks to the payment collaborator service. It handles every
// gateway brand the service itself supports, so one adapter instance can
// back several routing entries.
type RESTGateway struct {
	baseURL string
	http    *http.Client
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewRESTGateway constructs a RESTGateway validating required dependencies.
func NewRESTGateway(deps RESTGatewayDeps) (*RESTGateway, error) {
	base := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if base == "" {
		return nil, errors.New("payments rest gateway: base URL is required")
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &RESTGateway{baseURL: base, http: httpClient, logger: logger}, nil
}

type cardPayload struct {
	HolderName string `json:"holder_name"`
	Number     string `json:"number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	Brand      string `json:"brand,omitempty"`
}

type createPaymentPayload struct {
	Gateway  string       `json:"gateway"`
	Method   string       `json:"method"`
	Amount   float64      `json:"amount"`
	Currency string       `json:"currency"`
	Customer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer"`
	Card *cardPayload `json:"card,omitempty"`
}

type pixPayload struct {
	PixKey     string    `json:"pix_key"`
	QRCodeText string    `json:"qr_code_text"`
	QRCodeURL  string    `json:"qr_code_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type paymentPayload struct {
	TransactionID string      `json:"transaction_id"`
	Status        string      `json:"status"`
	Gateway       string      `json:"gateway"`
	Method        string      `json:"method"`
	Message       string      `json:"message"`
	Pix           *pixPayload `json:"pix,omitempty"`
}

// CreatePayment posts a charge to the payment service.
func (g *RESTGateway) CreatePayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	payload := createPaymentPayload{
		Gateway:  string(req.Gateway),
		Method:   string(req.Method),
		Amount:   req.Amount.InexactFloat64(),
		Currency: req.Currency,
	}
	payload.Customer.Name = req.Customer.Name
	payload.Customer.Email = req.Customer.Email
	if req.Card != nil {
		payload.Card = &cardPayload{
			HolderName: req.Card.HolderName,
			Number:     req.Card.Number,
			Expiry:     req.Card.Expiry,
			CVV:        req.Card.CVV,
			Brand:      req.Card.Brand,
		}
	}

	var out paymentPayload
	if err := g.post(ctx, "/payments", payload, &out); err != nil {
		return domain.PaymentResult{}, err
	}
	return toPaymentResult(out), nil
}

// ConfirmPayment confirms a pending PIX charge.
func (g *RESTGateway) ConfirmPayment(ctx context.Context, transactionID string) (domain.PaymentResult, error) {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return domain.PaymentResult{}, fmt.Errorf("%w: transaction id is required", ErrValidation)
	}
	var out paymentPayload
	if err := g.post(ctx, "/payments/"+id+"/confirm", nil, &out); err != nil {
		return domain.PaymentResult{}, err
	}
	return toPaymentResult(out), nil
}

func (g *RESTGateway) post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode: %v", ErrValidation, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		kind := classifyTransportError(ctx, err)
		g.logger(ctx, "payments.gateway_call_failed", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %v", kind, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrConnectivity, err)
	}

	if resp.StatusCode >= 400 {
		kind := ErrConnectivity
		if resp.StatusCode < 500 {
			kind = ErrValidation
		}
		g.logger(ctx, "payments.gateway_rejected", map[string]any{
			"path":   path,
			"status": resp.StatusCode,
		})
		return fmt.Errorf("%w: status %d: %s", kind, resp.StatusCode, serviceErrorDetail(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrConnectivity, err)
	}
	return nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrConnectivity
}

func serviceErrorDetail(raw []byte) string {
	var envelope struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Detail != "" {
			return envelope.Detail
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

func toPaymentResult(payload paymentPayload) domain.PaymentResult {
	result := domain.PaymentResult{
		TransactionID: payload.TransactionID,
		Gateway:       domain.PaymentGateway(strings.ToLower(payload.Gateway)),
		Method:        domain.PaymentMethod(strings.ToLower(payload.Method)),
		Status:        normalizeStatus(payload.Status),
		Message:       payload.Message,
	}
	if payload.Pix != nil {
		result.Pix = &domain.PixData{
			PixKey:     payload.Pix.PixKey,
			QRCodeText: payload.Pix.QRCodeText,
			QRCodeURL:  payload.Pix.QRCodeURL,
			ExpiresAt:  payload.Pix.ExpiresAt.UTC(),
		}
	}
	return result
}

// normalizeStatus folds the service's wire statuses into the three states
// the rest of the codebase reasons about.
func normalizeStatus(status string) domain.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved", "confirmed", "succeeded", "paid":
		return domain.PaymentConfirmed
	case "pending", "processing", "awaiting_payment":
		return domain.PaymentPending
	default:
		return domain.PaymentFailed
	}
}
