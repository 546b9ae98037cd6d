package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/compia-store/api/internal/domain"
)

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
}

// StripeGatewayConfig configures the direct Stripe adapter.
type StripeGatewayConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   func(ctx context.Context, event string, fields map[string]any)
	Intents  stripeIntentAPI
}

// StripeGateway charges cards directly through Stripe Payment Intents,
// bypassing the payment collaborator service. It is card-only; PIX always
// goes through the REST gateway.
type StripeGateway struct {
	intents stripeIntentAPI
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewStripeGateway constructs a StripeGateway using the given configuration.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	intents := cfg.Intents
	if intents == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe gateway: api key is required")
		}
		sc := client.New(apiKey, cfg.Backends)
		intents = sc.PaymentIntents
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &StripeGateway{intents: intents, logger: logger}, nil
}

// CreatePayment creates and confirms a card Payment Intent in one call.
func (g *StripeGateway) CreatePayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	if req.Method != domain.MethodCard {
		return domain.PaymentResult{}, fmt.Errorf("%w: stripe adapter handles card payments only", ErrValidation)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount.Mul(centsPerUnit).IntPart()),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		Confirm:  stripe.Bool(true),
		Metadata: map[string]string{
			"customer_name":  req.Customer.Name,
			"customer_email": req.Customer.Email,
		},
	}
	params.Context = ctx

	intent, err := g.intents.New(params)
	if err != nil {
		return domain.PaymentResult{}, g.classify(ctx, "payments.stripe.create_failed", err)
	}

	g.logger(ctx, "payments.stripe.intent_created", map[string]any{
		"paymentIntent": intent.ID,
		"status":        intent.Status,
	})
	return stripeResult(intent), nil
}

// ConfirmPayment confirms a previously created Payment Intent.
func (g *StripeGateway) ConfirmPayment(ctx context.Context, transactionID string) (domain.PaymentResult, error) {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return domain.PaymentResult{}, fmt.Errorf("%w: transaction id is required", ErrValidation)
	}

	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx

	intent, err := g.intents.Confirm(id, params)
	if err != nil {
		return domain.PaymentResult{}, g.classify(ctx, "payments.stripe.confirm_failed", err)
	}

	g.logger(ctx, "payments.stripe.intent_confirmed", map[string]any{
		"paymentIntent": intent.ID,
		"status":        intent.Status,
	})
	return stripeResult(intent), nil
}

var centsPerUnit = decimal.NewFromInt(100)

func (g *StripeGateway) classify(ctx context.Context, event string, err error) error {
	g.logger(ctx, event, map[string]any{"error": err.Error()})

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
			return fmt.Errorf("%w: %s", ErrValidation, stripeErr.Msg)
		}
	}
	return fmt.Errorf("%w: %v", ErrConnectivity, err)
}

func stripeResult(intent *stripe.PaymentIntent) domain.PaymentResult {
	status := domain.PaymentPending
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = domain.PaymentConfirmed
	case stripe.PaymentIntentStatusCanceled:
		status = domain.PaymentFailed
	}
	return domain.PaymentResult{
		TransactionID: intent.ID,
		Gateway:       domain.GatewayStripe,
		Method:        domain.MethodCard,
		Status:        status,
	}
}
