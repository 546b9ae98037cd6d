package shipping

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compia-store/api/internal/cep"
	"github.com/compia-store/api/internal/domain"
)

type stubLookup struct {
	calls    atomic.Int64
	lookupFn func(ctx context.Context, code string) (cep.Address, error)
}

func (s *stubLookup) Lookup(ctx context.Context, code string) (cep.Address, error) {
	s.calls.Add(1)
	if s.lookupFn == nil {
		return cep.Address{}, errors.New("lookup not configured")
	}
	return s.lookupFn(ctx, code)
}

func lookupByState(states map[string]string) *stubLookup {
	return &stubLookup{lookupFn: func(_ context.Context, code string) (cep.Address, error) {
		state, ok := states[code]
		if !ok {
			return cep.Address{}, cep.ErrLookup
		}
		return cep.Address{CEP: code, State: state}, nil
	}}
}

func newTestEstimator(t *testing.T, lookup AddressLookup) *Estimator {
	t.Helper()
	est, err := NewEstimator(EstimatorDeps{
		Lookup:    lookup,
		OriginCEP: "01310-100",
	})
	require.NoError(t, err)
	return est
}

func bookItem(price string, qty int) domain.CartItem {
	return domain.CartItem{ID: "bk", Type: domain.ItemTypeBook, Price: decimal.RequireFromString(price), Quantity: qty}
}

func ebookItem(price string, qty int) domain.CartItem {
	return domain.CartItem{ID: "eb", Type: domain.ItemTypeEbook, Price: decimal.RequireFromString(price), Quantity: qty}
}

func TestEstimateDigitalOnlyCart(t *testing.T) {
	lookup := &stubLookup{}
	est := newTestEstimator(t, lookup)

	quote := est.Estimate(context.Background(), domain.Cart{ebookItem("30", 2)}, "04001000")

	assert.Equal(t, "0", quote.Cost.String())
	assert.Equal(t, 0, quote.Days)
	assert.Equal(t, ServiceDigital, quote.Service)
	assert.Zero(t, lookup.calls.Load(), "digital carts must not hit the address service")
}

func TestEstimateFreeShippingThreshold(t *testing.T) {
	lookup := &stubLookup{}
	est := newTestEstimator(t, lookup)

	// Digital lines count toward the threshold even though they never ship.
	cart := domain.Cart{bookItem("120", 1), ebookItem("80", 1)}
	quote := est.Estimate(context.Background(), cart, "04001000")

	assert.Equal(t, "0", quote.Cost.String())
	assert.Equal(t, 5, quote.Days)
	assert.Equal(t, ServicePAC, quote.Service)
	assert.Zero(t, lookup.calls.Load())
}

func TestEstimateBracketBoundaryIsInclusive(t *testing.T) {
	// Boundaries are closed on the upper end.
	assert.Equal(t, "8.5", baseCostForWeight(decimal.RequireFromString("0.3")).String())
	assert.Equal(t, "10", baseCostForWeight(decimal.RequireFromString("0.5")).String())
	assert.Equal(t, "12.5", baseCostForWeight(decimal.RequireFromString("1")).String())
	assert.Equal(t, "18", baseCostForWeight(decimal.RequireFromString("2")).String())
	// Above 2 kg the cost grows linearly.
	assert.Equal(t, "25", baseCostForWeight(decimal.RequireFromString("4")).String())
}

func TestEstimateSameStateDiscount(t *testing.T) {
	states := map[string]string{"01310100": "SP", "04001000": "SP"}
	est := newTestEstimator(t, lookupByState(states))

	cart := domain.Cart{bookItem("50", 2), ebookItem("30", 1)}
	quote := est.Estimate(context.Background(), cart, "04001-000")

	assert.Equal(t, "10.63", quote.Cost.StringFixed(2))
	assert.Equal(t, 3, quote.Days)
	assert.Equal(t, ServicePAC, quote.Service)
	assert.Equal(t, "130", cart.Subtotal().String())
}

func TestEstimateCrossStateSurcharge(t *testing.T) {
	states := map[string]string{"01310100": "SP", "20040002": "RJ"}
	est := newTestEstimator(t, lookupByState(states))

	cart := domain.Cart{bookItem("50", 2)}
	quote := est.Estimate(context.Background(), cart, "20040002")

	assert.Equal(t, "15.00", quote.Cost.StringFixed(2))
	assert.Equal(t, 7, quote.Days)
}

func TestEstimateUnknownStateSkipsAdjustment(t *testing.T) {
	states := map[string]string{"01310100": "SP"}
	est := newTestEstimator(t, lookupByState(states))

	cart := domain.Cart{bookItem("50", 2)}
	quote := est.Estimate(context.Background(), cart, "99999999")

	assert.Equal(t, "12.50", quote.Cost.StringFixed(2))
	assert.Equal(t, 5, quote.Days)
}

func TestEstimateSkipStateLookups(t *testing.T) {
	lookup := lookupByState(map[string]string{"01310100": "SP", "04001000": "SP"})
	est, err := NewEstimator(EstimatorDeps{
		Lookup:           lookup,
		OriginCEP:        "01310100",
		SkipStateLookups: true,
	})
	require.NoError(t, err)

	cart := domain.Cart{bookItem("50", 2)}
	quote := est.Estimate(context.Background(), cart, "04001000")

	assert.Equal(t, "12.50", quote.Cost.StringFixed(2))
	assert.Equal(t, 5, quote.Days)
	assert.Zero(t, lookup.calls.Load(), "disabled estimates must not hit the address service")
}

func TestEstimateClampsCost(t *testing.T) {
	sameState := map[string]string{"01310100": "SP", "04001000": "SP"}

	t.Run("floor", func(t *testing.T) {
		est := newTestEstimator(t, lookupByState(sameState))
		// One 0.5 kg book prices at 10.00, discounted to 8.50 exactly after
		// the floor kicks in (10.00 * 0.85 = 8.50, already at the minimum).
		cart := domain.Cart{bookItem("20", 1)}
		quote := est.Estimate(context.Background(), cart, "04001000")
		assert.Equal(t, "8.50", quote.Cost.StringFixed(2))
	})

	t.Run("ceiling", func(t *testing.T) {
		est := newTestEstimator(t, lookupByState(sameState))
		// 80 units = 40 kg => 18 + 3.5*38 = 151, discounted 128.35; bump the
		// weight further to exceed the cap.
		cart := domain.Cart{bookItem("1.50", 100)}
		quote := est.Estimate(context.Background(), cart, "04001000")
		assert.True(t, quote.Cost.LessThanOrEqual(decimal.RequireFromString("150.00")),
			"cost %s exceeds ceiling", quote.Cost)
	})
}

func TestEstimateCachesQuotes(t *testing.T) {
	states := map[string]string{"01310100": "SP", "04001000": "SP"}
	lookup := lookupByState(states)
	est := newTestEstimator(t, lookup)

	cart := domain.Cart{bookItem("50", 2)}
	first := est.Estimate(context.Background(), cart, "04001000")
	afterFirst := lookup.calls.Load()
	second := est.Estimate(context.Background(), cart, "04001000")

	assert.Equal(t, first, second)
	assert.Equal(t, afterFirst, lookup.calls.Load(), "cached quote must not trigger new lookups")
}

func TestFallbackQuote(t *testing.T) {
	light := fallbackQuote(decimal.RequireFromString("0.5"))
	assert.Equal(t, "15.00", light.Cost.StringFixed(2))
	assert.Equal(t, 7, light.Days)
	assert.Equal(t, ServicePAC, light.Service)

	heavy := fallbackQuote(decimal.RequireFromString("3"))
	assert.Equal(t, "30.00", heavy.Cost.StringFixed(2))
}

func TestQuoteForMethod(t *testing.T) {
	est := newTestEstimator(t, &stubLookup{})

	cart := domain.Cart{bookItem("50", 4)}

	pickup := est.QuoteForMethod(context.Background(), domain.DeliveryPickup, cart, "04001000")
	assert.Equal(t, "0", pickup.Cost.String())
	assert.Equal(t, 0, pickup.Days)
	assert.Equal(t, ServicePickup, pickup.Service)

	digital := est.QuoteForMethod(context.Background(), domain.DeliveryDigital, cart, "04001000")
	assert.Equal(t, 0, digital.Days)
	assert.Equal(t, ServiceDigital, digital.Service)
}

func TestNewEstimatorValidation(t *testing.T) {
	_, err := NewEstimator(EstimatorDeps{OriginCEP: "01310100"})
	assert.Error(t, err)

	_, err = NewEstimator(EstimatorDeps{Lookup: &stubLookup{}, OriginCEP: "123"})
	assert.ErrorIs(t, err, cep.ErrInvalidCEP)
}
