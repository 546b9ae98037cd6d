package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/compia-store/api/internal/cep"
	"github.com/compia-store/api/internal/domain"
)

const (
	// ServicePAC is the standard (non-express) postal service tier.
	ServicePAC = "PAC"
	// ServiceDigital marks quotes for carts with nothing to ship.
	ServiceDigital = "Digital"
	// ServicePickup marks quotes for counter pickup.
	ServicePickup = "Retirada na loja"

	defaultFreeShippingDays = 5
	defaultDeliveryDays     = 5
	sameStateDeliveryDays   = 3
	crossStateDeliveryDays  = 7
	fallbackDeliveryDays    = 7

	defaultLookupTimeout = 5 * time.Second
	defaultQuoteCacheTTL = 10 * time.Minute
)

var (
	defaultFreeThreshold = decimal.RequireFromString("200.00")

	minShippingCost = decimal.RequireFromString("8.50")
	maxShippingCost = decimal.RequireFromString("150.00")

	sameStateFactor  = decimal.RequireFromString("0.85")
	crossStateFactor = decimal.RequireFromString("1.20")

	overWeightBase  = decimal.RequireFromString("18.00")
	overWeightLimit = decimal.RequireFromString("2")
	overWeightRate  = decimal.RequireFromString("3.50")

	fallbackMinCost   = decimal.RequireFromString("15.00")
	fallbackRatePerKg = decimal.RequireFromString("10")
)

// weightBrackets maps parcel weight to base cost. Upper bounds are
// inclusive, so a 0.3 kg parcel prices in the first bracket.
var weightBrackets = []struct {
	maxKg decimal.Decimal
	cost  decimal.Decimal
}{
	{maxKg: decimal.RequireFromString("0.3"), cost: decimal.RequireFromString("8.50")},
	{maxKg: decimal.RequireFromString("0.5"), cost: decimal.RequireFromString("10.00")},
	{maxKg: decimal.RequireFromString("1"), cost: decimal.RequireFromString("12.50")},
	{maxKg: decimal.RequireFromString("2"), cost: decimal.RequireFromString("18.00")},
}

// AddressLookup resolves a CEP into an address; used to derive the
// origin and destination states for the distance adjustment.
type AddressLookup interface {
	Lookup(ctx context.Context, code string) (cep.Address, error)
}

// EstimatorDeps wires the dependencies required by the shipping estimator.
// SkipStateLookups quotes with the neutral tariff and delivery window
// without ever calling the address service; an operational escape hatch
// for when that service misbehaves.
type EstimatorDeps struct {
	Lookup           AddressLookup
	OriginCEP        string
	FreeThreshold    decimal.Decimal
	LookupTimeout    time.Duration
	CacheTTL         time.Duration
	SkipStateLookups bool
	Clock            func() time.Time
	Logger           func(ctx context.Context, event string, fields map[string]any)
}

// Estimator computes shipping quotes from cart contents and destination CEP.
type Estimator struct {
	lookup           AddressLookup
	originCEP        string
	freeThreshold    decimal.Decimal
	lookupTimeout    time.Duration
	skipStateLookups bool
	cache            *quoteCache
	logger           func(ctx context.Context, event string, fields map[string]any)
}

// NewEstimator constructs an Estimator validating required dependencies.
func NewEstimator(deps EstimatorDeps) (*Estimator, error) {
	if deps.Lookup == nil {
		return nil, errors.New("shipping estimator: address lookup is required")
	}
	origin, err := cep.Normalize(deps.OriginCEP)
	if err != nil {
		return nil, fmt.Errorf("shipping estimator: origin: %w", err)
	}
	threshold := deps.FreeThreshold
	if threshold.IsZero() {
		threshold = defaultFreeThreshold
	}
	timeout := deps.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultQuoteCacheTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Estimator{
		lookup:           deps.Lookup,
		originCEP:        origin,
		freeThreshold:    threshold,
		lookupTimeout:    timeout,
		skipStateLookups: deps.SkipStateLookups,
		cache:            newQuoteCache(ttl, func() time.Time { return clock().UTC() }),
		logger:           logger,
	}, nil
}

// QuoteForMethod short-circuits pickup and digital deliveries, which never
// carry a fee, and delegates carrier deliveries to Estimate.
func (e *Estimator) QuoteForMethod(ctx context.Context, method domain.DeliveryMethod, cart domain.Cart, destinationCEP string) domain.ShippingQuote {
	switch method {
	case domain.DeliveryPickup:
		return domain.ShippingQuote{Cost: decimal.Zero, Days: 0, Service: ServicePickup}
	case domain.DeliveryDigital:
		return domain.ShippingQuote{Cost: decimal.Zero, Days: 0, Service: ServiceDigital}
	default:
		return e.Estimate(ctx, cart, destinationCEP)
	}
}

// Estimate computes the shipping quote for a cart headed to destinationCEP.
// It never fails: address lookups are best-effort and any unexpected
// breakage degrades to a weight-only fallback tariff.
func (e *Estimator) Estimate(ctx context.Context, cart domain.Cart, destinationCEP string) (quote domain.ShippingQuote) {
	if !cart.HasPhysicalItems() {
		return domain.ShippingQuote{Cost: decimal.Zero, Days: 0, Service: ServiceDigital}
	}

	subtotal := cart.Subtotal()
	if subtotal.GreaterThanOrEqual(e.freeThreshold) {
		// Fee waived, but the carrier SLA still applies.
		return domain.ShippingQuote{Cost: decimal.Zero, Days: defaultFreeShippingDays, Service: ServicePAC}
	}

	weight := cart.PhysicalWeightKg()
	if weight.IsZero() {
		return domain.ShippingQuote{Cost: decimal.Zero, Days: 0, Service: ServiceDigital}
	}

	key := quoteCacheKey(destinationCEP, weight, subtotal)
	if cached, ok := e.cache.Get(key); ok {
		return cached
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger(ctx, "shipping.estimate_panic", map[string]any{"panic": fmt.Sprint(r)})
			quote = fallbackQuote(weight)
		}
	}()

	quote = e.priceByDistance(ctx, weight, destinationCEP)
	e.cache.Put(key, quote)
	return quote
}

func (e *Estimator) priceByDistance(ctx context.Context, weight decimal.Decimal, destinationCEP string) domain.ShippingQuote {
	cost := baseCostForWeight(weight)
	days := defaultDeliveryDays

	if !e.skipStateLookups {
		originState, destState := e.resolveStates(ctx, destinationCEP)
		switch {
		case originState != "" && originState == destState:
			cost = cost.Mul(sameStateFactor)
			days = sameStateDeliveryDays
		case originState != "" && destState != "":
			cost = cost.Mul(crossStateFactor)
			days = crossStateDeliveryDays
		}
	}

	if cost.LessThan(minShippingCost) {
		cost = minShippingCost
	}
	if cost.GreaterThan(maxShippingCost) {
		cost = maxShippingCost
	}

	return domain.ShippingQuote{Cost: domain.RoundBRL(cost), Days: days, Service: ServicePAC}
}

// resolveStates looks up the origin and destination states concurrently.
// Each lookup carries its own deadline and failures are tolerated; an
// unknown side just skips the distance adjustment.
func (e *Estimator) resolveStates(ctx context.Context, destinationCEP string) (origin, destination string) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		origin = e.stateFor(ctx, e.originCEP)
	}()
	go func() {
		defer wg.Done()
		destination = e.stateFor(ctx, destinationCEP)
	}()
	wg.Wait()
	return origin, destination
}

func (e *Estimator) stateFor(ctx context.Context, code string) string {
	normalized, err := cep.Normalize(code)
	if err != nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	addr, err := e.lookup.Lookup(ctx, normalized)
	if err != nil {
		e.logger(ctx, "shipping.state_lookup_failed", map[string]any{
			"cep":   normalized,
			"error": err.Error(),
		})
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(addr.State))
}

func baseCostForWeight(weight decimal.Decimal) decimal.Decimal {
	for _, bracket := range weightBrackets {
		if weight.LessThanOrEqual(bracket.maxKg) {
			return bracket.cost
		}
	}
	excess := weight.Sub(overWeightLimit)
	return overWeightBase.Add(overWeightRate.Mul(excess))
}

// fallbackQuote prices purely by weight when the regular path breaks.
func fallbackQuote(weight decimal.Decimal) domain.ShippingQuote {
	cost := weight.Mul(fallbackRatePerKg)
	if cost.LessThan(fallbackMinCost) {
		cost = fallbackMinCost
	}
	return domain.ShippingQuote{Cost: domain.RoundBRL(cost), Days: fallbackDeliveryDays, Service: ServicePAC}
}

func quoteCacheKey(destinationCEP string, weight, subtotal decimal.Decimal) string {
	return strings.Join([]string{
		strings.TrimSpace(destinationCEP),
		weight.String(),
		subtotal.String(),
	}, "|")
}

type quoteCache struct {
	ttl time.Duration
	now func() time.Time
	mu  sync.RWMutex
	m   map[string]quoteCacheEntry
}

type quoteCacheEntry struct {
	quote   domain.ShippingQuote
	expires time.Time
}

func newQuoteCache(ttl time.Duration, now func() time.Time) *quoteCache {
	return &quoteCache{
		ttl: ttl,
		now: now,
		m:   make(map[string]quoteCacheEntry),
	}
}

func (c *quoteCache) Get(key string) (domain.ShippingQuote, bool) {
	c.mu.RLock()
	entry, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return domain.ShippingQuote{}, false
	}
	if c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return domain.ShippingQuote{}, false
	}
	return entry.quote, true
}

func (c *quoteCache) Put(key string, quote domain.ShippingQuote) {
	c.mu.Lock()
	c.m[key] = quoteCacheEntry{quote: quote, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
