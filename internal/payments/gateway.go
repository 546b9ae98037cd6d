package payments

import (
	"context"
	"errors"

	"github.com/compia-store/api/internal/domain"
)

var (
	// ErrValidation indicates the gateway rejected the payload. Not retryable.
	ErrValidation = errors.New("payments: validation failed")
	// ErrTimeout indicates the gateway call exceeded its deadline.
	ErrTimeout = errors.New("payments: gateway timed out")
	// ErrConnectivity indicates the gateway could not be reached.
	ErrConnectivity = errors.New("payments: gateway unreachable")
	// ErrUnsupportedGateway is returned when no adapter matches the request.
	ErrUnsupportedGateway = errors.New("payments: unsupported gateway")
)

// Gateway is the two-phase payment contract every adapter implements.
// Card payments settle on CreatePayment; PIX payments come back pending
// and settle on ConfirmPayment.
type Gateway interface {
	CreatePayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error)
	ConfirmPayment(ctx context.Context, transactionID string) (domain.PaymentResult, error)
}

// CardBrands lists the card brands accepted at checkout.
func CardBrands() []string {
	return []string{"visa", "mastercard", "elo", "amex", "hipercard"}
}

// Options describes the payment combinations the checkout UI can offer.
type Options struct {
	Gateways   []domain.PaymentGateway
	CardBrands []string
	Methods    []domain.PaymentMethod
}
