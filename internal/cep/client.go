package cep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"
)

const defaultLookupTimeout = 5 * time.Second

var (
	// ErrInvalidCEP indicates the postal code is not an 8-digit Brazilian CEP.
	ErrInvalidCEP = errors.New("cep: invalid postal code")
	// ErrLookup indicates the address service could not resolve the CEP.
	ErrLookup = errors.New("cep: lookup failed")
)

// Address is the resolved location behind a CEP.
type Address struct {
	CEP      string
	Street   string
	District string
	City     string
	State    string
}

// Compose renders the address as the single line used to prefill the
// checkout form ("Rua X - Bairro, Cidade/UF").
func (a Address) Compose() string {
	left := a.Street
	if a.District != "" {
		if left != "" {
			left += " - "
		}
		left += a.District
	}
	right := a.City
	if a.State != "" {
		if right != "" {
			right += "/"
		}
		right += a.State
	}
	switch {
	case left == "":
		return right
	case right == "":
		return left
	default:
		return left + ", " + right
	}
}

// Normalize strips formatting from a CEP and validates it has exactly
// eight digits.
func Normalize(code string) (string, error) {
	var digits strings.Builder
	for _, r := range code {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	normalized := digits.String()
	if len(normalized) != 8 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCEP, strings.TrimSpace(code))
	}
	return normalized, nil
}

// ClientDeps wires the dependencies required by the address-lookup client.
type ClientDeps struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// Client resolves CEPs against the address service.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewClient constructs a Client validating required dependencies.
func NewClient(deps ClientDeps) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if base == "" {
		return nil, errors.New("cep client: base URL is required")
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Client{
		baseURL: base,
		http:    httpClient,
		timeout: timeout,
		logger:  logger,
	}, nil
}

type addressPayload struct {
	CEP      string `json:"cep"`
	Street   string `json:"street"`
	District string `json:"district"`
	City     string `json:"city"`
	State    string `json:"state"`
}

// Lookup resolves a CEP into an address. The call carries its own deadline
// so a slow address service never stalls the caller past the configured
// timeout.
func (c *Client) Lookup(ctx context.Context, code string) (Address, error) {
	normalized, err := Normalize(code)
	if err != nil {
		return Address{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/cep/%s", c.baseURL, normalized)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger(ctx, "cep.lookup_failed", map[string]any{
			"cep":   normalized,
			"error": err.Error(),
		})
		return Address{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		c.logger(ctx, "cep.lookup_failed", map[string]any{
			"cep":    normalized,
			"status": resp.StatusCode,
		})
		return Address{}, fmt.Errorf("%w: status %d", ErrLookup, resp.StatusCode)
	}

	var payload addressPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Address{}, fmt.Errorf("%w: decode: %v", ErrLookup, err)
	}
	if strings.TrimSpace(payload.State) == "" {
		return Address{}, fmt.Errorf("%w: response missing state", ErrLookup)
	}

	return Address{
		CEP:      normalized,
		Street:   strings.TrimSpace(payload.Street),
		District: strings.TrimSpace(payload.District),
		City:     strings.TrimSpace(payload.City),
		State:    strings.ToUpper(strings.TrimSpace(payload.State)),
	}, nil
}
