package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultEnvFile           = ".env"
	defaultPort              = "8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultServiceTimeout    = 10 * time.Second
	defaultCEPBaseURL        = "http://localhost:8000"
	defaultPaymentsBaseURL   = "http://localhost:8000"
	defaultOrdersBaseURL     = "http://localhost:8000"
	defaultNotifyBaseURL     = "http://localhost:8000"
	defaultOriginCEP         = "01310100"
	defaultFreeThreshold     = "200.00"
	defaultCEPLookupTimeout  = 4 * time.Second
	defaultQuoteCacheTTL     = 10 * time.Minute
	defaultPaymentTimeout    = 15 * time.Second
	defaultPaymentGateway    = "mercadopago"
	defaultDeliveryEstimates = true
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Services ServicesConfig
	Shipping ShippingConfig
	Payments PaymentsConfig
	Features FeatureFlags
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ServicesConfig lists base URLs and the shared timeout for downstream HTTP services.
type ServicesConfig struct {
	CEPBaseURL           string
	PaymentsBaseURL      string
	OrdersBaseURL        string
	NotificationsBaseURL string
	RequestTimeout       time.Duration
}

// ShippingConfig controls freight estimation behaviour.
type ShippingConfig struct {
	OriginCEP             string
	FreeShippingThreshold decimal.Decimal
	LookupTimeout         time.Duration
	QuoteCacheTTL         time.Duration
}

// PaymentsConfig collects gateway selection and credentials.
type PaymentsConfig struct {
	CallTimeout    time.Duration
	DefaultGateway string
	StripeAPIKey   string
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	EnableDeliveryEstimates bool
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Services: ServicesConfig{
			CEPBaseURL:           stringWithDefault(lookup, "API_SERVICES_CEP_BASE_URL", defaultCEPBaseURL),
			PaymentsBaseURL:      stringWithDefault(lookup, "API_SERVICES_PAYMENTS_BASE_URL", defaultPaymentsBaseURL),
			OrdersBaseURL:        stringWithDefault(lookup, "API_SERVICES_ORDERS_BASE_URL", defaultOrdersBaseURL),
			NotificationsBaseURL: stringWithDefault(lookup, "API_SERVICES_NOTIFICATIONS_BASE_URL", defaultNotifyBaseURL),
			RequestTimeout:       durationWithDefault(lookup, "API_SERVICES_REQUEST_TIMEOUT", defaultServiceTimeout),
		},
		Shipping: ShippingConfig{
			OriginCEP:             stringWithDefault(lookup, "API_SHIPPING_ORIGIN_CEP", defaultOriginCEP),
			FreeShippingThreshold: decimalWithDefault(lookup, "API_SHIPPING_FREE_THRESHOLD", defaultFreeThreshold),
			LookupTimeout:         durationWithDefault(lookup, "API_SHIPPING_LOOKUP_TIMEOUT", defaultCEPLookupTimeout),
			QuoteCacheTTL:         durationWithDefault(lookup, "API_SHIPPING_QUOTE_CACHE_TTL", defaultQuoteCacheTTL),
		},
		Payments: PaymentsConfig{
			CallTimeout:    durationWithDefault(lookup, "API_PAYMENTS_CALL_TIMEOUT", defaultPaymentTimeout),
			DefaultGateway: strings.ToLower(strings.TrimSpace(stringWithDefault(lookup, "API_PAYMENTS_DEFAULT_GATEWAY", defaultPaymentGateway))),
			StripeAPIKey:   stringWithDefault(lookup, "API_PAYMENTS_STRIPE_API_KEY", ""),
		},
		Features: FeatureFlags{
			EnableDeliveryEstimates: boolWithDefault(lookup, "API_FEATURE_DELIVERY_ESTIMATES", defaultDeliveryEstimates),
		},
	}

	// Resolve secrets when values reference a secret store.
	resolved, err := resolveSecret(ctx, cfg.Payments.StripeAPIKey, options.secret)
	if err != nil {
		return Config{}, err
	}
	cfg.Payments.StripeAPIKey = resolved

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" {
		return value, nil
	}
	if !isSecretReference(value) {
		return value, nil
	}
	if resolver == nil {
		normalized := normalizeSecretReference(value)
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	normalized := normalizeSecretReference(value)
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Services.CEPBaseURL == "" {
		missing = append(missing, "Services.CEPBaseURL")
	}
	if cfg.Services.PaymentsBaseURL == "" {
		missing = append(missing, "Services.PaymentsBaseURL")
	}
	if cfg.Services.OrdersBaseURL == "" {
		missing = append(missing, "Services.OrdersBaseURL")
	}
	if cfg.Services.NotificationsBaseURL == "" {
		missing = append(missing, "Services.NotificationsBaseURL")
	}
	if cfg.Services.RequestTimeout <= 0 {
		missing = append(missing, "Services.RequestTimeout")
	}
	if !isNumericCEP(cfg.Shipping.OriginCEP) {
		missing = append(missing, "Shipping.OriginCEP")
	}
	if cfg.Shipping.FreeShippingThreshold.IsNegative() {
		missing = append(missing, "Shipping.FreeShippingThreshold")
	}
	if cfg.Shipping.LookupTimeout <= 0 {
		missing = append(missing, "Shipping.LookupTimeout")
	}
	if cfg.Payments.CallTimeout <= 0 {
		missing = append(missing, "Payments.CallTimeout")
	}
	if cfg.Payments.DefaultGateway == "" {
		missing = append(missing, "Payments.DefaultGateway")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isNumericCEP(value string) bool {
	if len(value) != 8 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func decimalWithDefault(lookup func(string) (string, bool), key, fallback string) decimal.Decimal {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		if parsed, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return decimal.RequireFromString(fallback)
}
