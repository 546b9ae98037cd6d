package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compia-store/api/internal/domain"
)

const defaultCallTimeout = 15 * time.Second

// OrchestratorDeps wires the gateway adapters the orchestrator routes across.
type OrchestratorDeps struct {
	Gateways       map[domain.PaymentGateway]Gateway
	DefaultGateway domain.PaymentGateway
	CallTimeout    time.Duration
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

// Orchestrator drives the two-phase payment protocol across gateways. It
// validates card preconditions before any network call and bounds every
// gateway call with a deadline.
type Orchestrator struct {
	gateways       map[domain.PaymentGateway]Gateway
	defaultGateway domain.PaymentGateway
	callTimeout    time.Duration
	logger         func(ctx context.Context, event string, fields map[string]any)
}

// NewOrchestrator constructs an Orchestrator over the supplied adapters.
func NewOrchestrator(deps OrchestratorDeps) (*Orchestrator, error) {
	if len(deps.Gateways) == 0 {
		return nil, errors.New("payments orchestrator: at least one gateway is required")
	}
	gateways := make(map[domain.PaymentGateway]Gateway, len(deps.Gateways))
	for key, gw := range deps.Gateways {
		if gw == nil {
			return nil, fmt.Errorf("payments orchestrator: nil gateway registered for %q", key)
		}
		gateways[key] = gw
	}
	timeout := deps.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Orchestrator{
		gateways:       gateways,
		defaultGateway: deps.DefaultGateway,
		callTimeout:    timeout,
		logger:         logger,
	}, nil
}

// Options lists the gateway/method/brand combinations available to checkout.
func (o *Orchestrator) Options() Options {
	return Options{
		Gateways:   domain.PaymentGateways(),
		CardBrands: CardBrands(),
		Methods:    []domain.PaymentMethod{domain.MethodCard, domain.MethodPix},
	}
}

// CreatePayment starts a charge. Card payments return a terminal result;
// PIX payments return pending with the data needed to render the QR code.
func (o *Orchestrator) CreatePayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	if err := validateRequest(req); err != nil {
		return domain.PaymentResult{}, err
	}

	key, gateway, err := o.resolve(req.Gateway)
	if err != nil {
		return domain.PaymentResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	result, err := gateway.CreatePayment(ctx, req)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	if result.Gateway == "" {
		result.Gateway = key
	}
	if result.Method == "" {
		result.Method = req.Method
	}

	if req.Method == domain.MethodPix {
		if result.Pix == nil {
			return domain.PaymentResult{}, fmt.Errorf("%w: pix response missing qr data", ErrConnectivity)
		}
		if result.Status == domain.PaymentConfirmed {
			// A PIX charge can only become terminal through ConfirmPayment.
			o.logger(ctx, "payments.pix_status_coerced", map[string]any{
				"transactionId": result.TransactionID,
				"status":        result.Status,
			})
			result.Status = domain.PaymentPending
		}
	}

	o.logger(ctx, "payments.created", map[string]any{
		"transactionId": result.TransactionID,
		"gateway":       result.Gateway,
		"method":        result.Method,
		"status":        result.Status,
	})
	return result, nil
}

// ConfirmPayment settles a pending PIX charge.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, gateway domain.PaymentGateway, transactionID string) (domain.PaymentResult, error) {
	if transactionID == "" {
		return domain.PaymentResult{}, fmt.Errorf("%w: transaction id is required", ErrValidation)
	}

	key, adapter, err := o.resolve(gateway)
	if err != nil {
		return domain.PaymentResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	result, err := adapter.ConfirmPayment(ctx, transactionID)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	if result.Gateway == "" {
		result.Gateway = key
	}

	o.logger(ctx, "payments.confirmed", map[string]any{
		"transactionId": result.TransactionID,
		"gateway":       result.Gateway,
		"status":        result.Status,
	})
	return result, nil
}

func (o *Orchestrator) resolve(gateway domain.PaymentGateway) (domain.PaymentGateway, Gateway, error) {
	if gw, ok := o.gateways[gateway]; ok {
		return gateway, gw, nil
	}
	if gw, ok := o.gateways[o.defaultGateway]; ok {
		return o.defaultGateway, gw, nil
	}
	if len(o.gateways) == 1 {
		for key, gw := range o.gateways {
			return key, gw, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedGateway, gateway)
}

func validateRequest(req domain.PaymentRequest) error {
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	switch req.Method {
	case domain.MethodCard:
		if req.Card == nil || !req.Card.Complete() {
			return fmt.Errorf("%w: card holder, number, expiry and cvv are required", ErrValidation)
		}
	case domain.MethodPix:
		// No extra fields; the gateway generates the key and QR payload.
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrValidation, req.Method)
	}
	return nil
}
