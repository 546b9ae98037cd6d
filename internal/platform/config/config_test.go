package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Services.CEPBaseURL != defaultCEPBaseURL {
		t.Errorf("unexpected cep base url: %s", cfg.Services.CEPBaseURL)
	}
	if cfg.Services.RequestTimeout != defaultServiceTimeout {
		t.Errorf("unexpected service timeout: %s", cfg.Services.RequestTimeout)
	}
	if cfg.Shipping.OriginCEP != "01310100" {
		t.Errorf("unexpected origin cep: %s", cfg.Shipping.OriginCEP)
	}
	if !cfg.Shipping.FreeShippingThreshold.Equal(decimal.RequireFromString("200.00")) {
		t.Errorf("unexpected free shipping threshold: %s", cfg.Shipping.FreeShippingThreshold)
	}
	if cfg.Shipping.QuoteCacheTTL != defaultQuoteCacheTTL {
		t.Errorf("unexpected quote cache ttl: %s", cfg.Shipping.QuoteCacheTTL)
	}
	if cfg.Payments.CallTimeout != 15*time.Second {
		t.Errorf("unexpected payment call timeout: %s", cfg.Payments.CallTimeout)
	}
	if cfg.Payments.DefaultGateway != "mercadopago" {
		t.Errorf("unexpected default gateway: %s", cfg.Payments.DefaultGateway)
	}
	if !cfg.Features.EnableDeliveryEstimates {
		t.Errorf("expected delivery estimates enabled by default")
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                     "9090",
		"API_SERVER_READ_TIMEOUT":             "20s",
		"API_SERVER_IDLE_TIMEOUT":             "2m",
		"API_SERVICES_CEP_BASE_URL":           "https://cep.internal",
		"API_SERVICES_PAYMENTS_BASE_URL":      "https://payments.internal",
		"API_SERVICES_ORDERS_BASE_URL":        "https://orders.internal",
		"API_SERVICES_NOTIFICATIONS_BASE_URL": "https://notify.internal",
		"API_SERVICES_REQUEST_TIMEOUT":        "6s",
		"API_SHIPPING_ORIGIN_CEP":             "04538132",
		"API_SHIPPING_FREE_THRESHOLD":         "150.50",
		"API_SHIPPING_LOOKUP_TIMEOUT":         "2s",
		"API_SHIPPING_QUOTE_CACHE_TTL":        "5m",
		"API_PAYMENTS_CALL_TIMEOUT":           "30s",
		"API_PAYMENTS_DEFAULT_GATEWAY":        "Stripe",
		"API_PAYMENTS_STRIPE_API_KEY":         "secret://stripe/api",
		"API_FEATURE_DELIVERY_ESTIMATES":      "false",
	}

	secrets := map[string]string{
		"secret://stripe/api": "sk_test_123",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Services.PaymentsBaseURL != "https://payments.internal" {
		t.Errorf("unexpected payments base url: %s", cfg.Services.PaymentsBaseURL)
	}
	if cfg.Services.RequestTimeout != 6*time.Second {
		t.Errorf("unexpected service timeout: %s", cfg.Services.RequestTimeout)
	}
	if cfg.Shipping.OriginCEP != "04538132" {
		t.Errorf("unexpected origin cep: %s", cfg.Shipping.OriginCEP)
	}
	if !cfg.Shipping.FreeShippingThreshold.Equal(decimal.RequireFromString("150.50")) {
		t.Errorf("unexpected free shipping threshold: %s", cfg.Shipping.FreeShippingThreshold)
	}
	if cfg.Payments.CallTimeout != 30*time.Second {
		t.Errorf("unexpected payment call timeout: %s", cfg.Payments.CallTimeout)
	}
	if cfg.Payments.DefaultGateway != "stripe" {
		t.Errorf("expected lowercased default gateway, got %s", cfg.Payments.DefaultGateway)
	}
	if cfg.Payments.StripeAPIKey != "sk_test_123" {
		t.Errorf("expected resolved stripe api key, got %s", cfg.Payments.StripeAPIKey)
	}
	if cfg.Features.EnableDeliveryEstimates {
		t.Errorf("expected delivery estimates disabled")
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_SHIPPING_ORIGIN_CEP=22041011\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Shipping.OriginCEP != "22041011" {
		t.Errorf("expected origin cep from dotenv, got %s", cfg.Shipping.OriginCEP)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	env := map[string]string{
		"API_SHIPPING_ORIGIN_CEP":      "abc",
		"API_SHIPPING_FREE_THRESHOLD":  "-1",
		"API_PAYMENTS_DEFAULT_GATEWAY": " ",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := validation.Fields()
	want := map[string]bool{
		"Shipping.OriginCEP":             false,
		"Shipping.FreeShippingThreshold": false,
		"Payments.DefaultGateway":        false,
	}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s in validation fields, got %v", field, fields)
		}
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_PAYMENTS_STRIPE_API_KEY": "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_PAYMENTS_STRIPE_API_KEY": "sm://stripe/api",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://stripe/api" {
			return "sk_legacy", nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Payments.StripeAPIKey != "sk_legacy" {
		t.Errorf("expected resolved legacy secret, got %s", cfg.Payments.StripeAPIKey)
	}
}
