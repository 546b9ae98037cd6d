package payments

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compia-store/api/internal/domain"
)

type stubGateway struct {
	createCalls  int
	confirmCalls int
	createFn     func(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error)
	confirmFn    func(ctx context.Context, transactionID string) (domain.PaymentResult, error)
}

func (s *stubGateway) CreatePayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	s.createCalls++
	if s.createFn == nil {
		return domain.PaymentResult{}, nil
	}
	return s.createFn(ctx, req)
}

func (s *stubGateway) ConfirmPayment(ctx context.Context, transactionID string) (domain.PaymentResult, error) {
	s.confirmCalls++
	if s.confirmFn == nil {
		return domain.PaymentResult{}, nil
	}
	return s.confirmFn(ctx, transactionID)
}

func validCard() *domain.CardDetails {
	return &domain.CardDetails{
		HolderName: "Ana Souza",
		Number:     "4111111111111111",
		Expiry:     "12/29",
		CVV:        "123",
		Brand:      "visa",
	}
}

func cardRequest() domain.PaymentRequest {
	return domain.PaymentRequest{
		Gateway:  domain.GatewayMercadoPago,
		Method:   domain.MethodCard,
		Amount:   decimal.RequireFromString("140.63"),
		Currency: "BRL",
		Customer: domain.Customer{Name: "Ana Souza", Email: "ana@example.com"},
		Card:     validCard(),
	}
}

func newOrchestrator(t *testing.T, gateways map[domain.PaymentGateway]Gateway) *Orchestrator {
	t.Helper()
	orc, err := NewOrchestrator(OrchestratorDeps{
		Gateways:       gateways,
		DefaultGateway: domain.GatewayMercadoPago,
	})
	require.NoError(t, err)
	return orc
}

func TestCreatePaymentCardRequiresAllFields(t *testing.T) {
	gw := &stubGateway{}
	orc := newOrchestrator(t, map[domain.PaymentGateway]Gateway{domain.GatewayMercadoPago: gw})

	for _, mutate := range []func(*domain.CardDetails){
		func(c *domain.CardDetails) { c.HolderName = "" },
		func(c *domain.CardDetails) { c.Number = " " },
		func(c *domain.CardDetails) { c.Expiry = "" },
		func(c *domain.CardDetails) { c.CVV = "" },
	} {
		req := cardRequest()
		mutate(req.Card)
		_, err := orc.CreatePayment(context.Background(), req)
		assert.ErrorIs(t, err, ErrValidation)
	}

	noCard := cardRequest()
	noCard.Card = nil
	_, err := orc.CreatePayment(context.Background(), noCard)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, gw.createCalls, "validation failures must not reach the gateway")
}

func TestCreatePaymentCardTerminalResult(t *testing.T) {
	gw := &stubGateway{createFn: func(_ context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
		return domain.PaymentResult{
			TransactionID: "txn_abc",
			Gateway:       req.Gateway,
			Method:        req.Method,
			Status:        domain.PaymentConfirmed,
		}, nil
	}}
	orc := newOrchestrator(t, map[domain.PaymentGateway]Gateway{domain.GatewayMercadoPago: gw})

	result, err := orc.CreatePayment(context.Background(), cardRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, result.Status)
	assert.Nil(t, result.Pix)
}

func TestCreatePaymentPixNeverConfirmedOnCreate(t *testing.T) {
	gw := &stubGateway{createFn: func(context.Context, domain.PaymentRequest) (domain.PaymentResult, error) {
		return domain.PaymentResult{
			TransactionID: "txn_pix",
			Status:        domain.PaymentConfirmed,
			Pix: &domain.PixData{
				PixKey:    "7e0a1bb2-8a6e-4c3f-9f40-1f2d3c4b5a69",
				ExpiresAt: time.Now().Add(30 * time.Minute),
			},
		}, nil
	}}
	orc := newOrchestrator(t, map[domain.PaymentGateway]Gateway{domain.GatewayMercadoPago: gw})

	req := cardRequest()
	req.Method = domain.MethodPix
	req.Card = nil

	result, err := orc.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, result.Status)
	require.NotNil(t, result.Pix)
}

func TestCreatePaymentPixRequiresQRData(t *testing.T) {
	gw := &stubGateway{createFn: func(context.Context, domain.PaymentRequest) (domain.PaymentResult, error) {
		return domain.PaymentResult{TransactionID: "txn_pix", Status: domain.PaymentPending}, nil
	}}
	orc := newOrchestrator(t, map[domain.PaymentGateway]Gateway{domain.GatewayMercadoPago: gw})

	req := cardRequest()
	req.Method = domain.MethodPix
	req.Card = nil

	_, err := orc.CreatePayment(context.Background(), req)
	assert.ErrorIs(t, err, ErrConnectivity)
}

func TestCreatePaymentRoutesToDefaultGateway(t *testing.T) {
	fallback := &stubGateway{createFn: func(_ context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
		return domain.PaymentResult{TransactionID: "txn_1", Method: req.Method, Status: domain.PaymentConfirmed}, nil
	}}
	orc := newOrchestrator(t, map[domain.PaymentGateway]Gateway{domain.GatewayMercadoPago: fallback})

	req := cardRequest()
	req.Gateway = domain.GatewayPayPal

	result, err := orc.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, fallback.createCalls)
	assert.Equal(t, domain.GatewayMercadoPago, result.Gateway)
}

func TestCreatePaymentBoundsGatewayCall(t *testing.T) {
	gw := &stubGateway{createFn: func(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Error("gateway call must carry a deadline")
		} else if time.Until(deadline) > defaultCallTimeout {
			t.Errorf("deadline %v further out than the default timeout", deadline)
		}
		return domain.PaymentResult{TransactionID: "txn_1", Method: req.Method, Status: domain.PaymentConfirmed}, nil
	}}
	orc := newOrchestrator(t, map[domain.PaymentGateway]Gateway{domain.GatewayMercadoPago: gw})

	_, err := orc.CreatePayment(context.Background(), cardRequest())
	require.NoError(t, err)
}

func TestCreatePaymentRejectsNonPositiveAmount(t *testing.T) {
	orc := newOrchestrator(t, map[domain.PaymentGateway]Gateway{domain.GatewayMercadoPago: &stubGateway{}})

	req := cardRequest()
	req.Amount = decimal.Zero
	_, err := orc.CreatePayment(context.Background(), req)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConfirmPayment(t *testing.T) {
	gw := &stubGateway{confirmFn: func(_ context.Context, transactionID string) (domain.PaymentResult, error) {
		return domain.PaymentResult{
			TransactionID: transactionID,
			Method:        domain.MethodPix,
			Status:        domain.PaymentConfirmed,
		}, nil
	}}
	orc := newOrchestrator(t, map[domain.PaymentGateway]Gateway{domain.GatewayMercadoPago: gw})

	result, err := orc.ConfirmPayment(context.Background(), domain.GatewayMercadoPago, "txn_pix")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, result.Status)
	assert.Equal(t, 1, gw.confirmCalls)

	_, err = orc.ConfirmPayment(context.Background(), domain.GatewayMercadoPago, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUnsupportedGateway(t *testing.T) {
	orc, err := NewOrchestrator(OrchestratorDeps{
		Gateways: map[domain.PaymentGateway]Gateway{
			domain.GatewayStripe:    &stubGateway{},
			domain.GatewayPagSeguro: &stubGateway{},
		},
	})
	require.NoError(t, err)

	req := cardRequest()
	req.Gateway = domain.GatewayPayPal
	_, err = orc.CreatePayment(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnsupportedGateway)
}

func TestOptions(t *testing.T) {
	orc := newOrchestrator(t, map[domain.PaymentGateway]Gateway{domain.GatewayMercadoPago: &stubGateway{}})

	opts := orc.Options()
	assert.Len(t, opts.Gateways, 4)
	assert.Contains(t, opts.CardBrands, "elo")
	assert.Equal(t, []domain.PaymentMethod{domain.MethodCard, domain.MethodPix}, opts.Methods)
}
