package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/compia-store/api/internal/domain"
)

// NotificationSinkDeps wires the dependencies of the notification client.
type NotificationSinkDeps struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// NotificationSink posts notification events to the notification
// collaborator. Delivery is fire-and-forget; callers treat failures as
// log-worthy, not fatal.
type NotificationSink struct {
	baseURL string
	http    *http.Client
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewNotificationSink constructs a NotificationSink validating required dependencies.
func NewNotificationSink(deps NotificationSinkDeps) (*NotificationSink, error) {
	base := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if base == "" {
		return nil, errors.New("notification sink: base URL is required")
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &NotificationSink{baseURL: base, http: httpClient, logger: logger}, nil
}

type notificationPayload struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	OrderID string `json:"order_id"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Notify posts a single notification event.
func (s *NotificationSink) Notify(ctx context.Context, notification domain.Notification) error {
	payload := notificationPayload{
		ID:      notification.ID,
		Role:    string(notification.Role),
		OrderID: notification.OrderID,
		Type:    notification.Type,
		Message: notification.Message,
	}
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notification sink: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/notifications", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("notification sink: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger(ctx, "notifications.delivery_failed", map[string]any{
			"orderId": notification.OrderID,
			"role":    notification.Role,
			"error":   err.Error(),
		})
		return fmt.Errorf("notification sink: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		s.logger(ctx, "notifications.delivery_failed", map[string]any{
			"orderId": notification.OrderID,
			"role":    notification.Role,
			"status":  resp.StatusCode,
		})
		return fmt.Errorf("notification sink: status %d", resp.StatusCode)
	}
	return nil
}
