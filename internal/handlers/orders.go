package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/compia-store/api/internal/domain"
	"github.com/compia-store/api/internal/orders"
	"github.com/compia-store/api/internal/platform/httpx"
)

const maxOrderRequestBody = 8 * 1024

// OrderStatusService applies lifecycle transitions to orders.
type OrderStatusService interface {
	AdvanceStatus(ctx context.Context, order domain.Order, target domain.OrderStatus) (domain.Order, error)
	Cancel(ctx context.Context, order domain.Order) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

// OrderHandlers exposes order listing and lifecycle endpoints.
type OrderHandlers struct {
	status OrderStatusService
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(status OrderStatusService) *OrderHandlers {
	return &OrderHandlers{status: status}
}

// Routes registers order endpoints under the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Patch("/{orderID}/status", h.updateStatus)
	r.Patch("/{orderID}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.status == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	listed, err := h.status.ListOrders(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	resp := make([]orderResponse, 0, len(listed))
	for _, order := range listed {
		resp = append(resp, orderToResponse(order))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.status == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	order, ok := h.resolveOrder(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req updateStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	target, valid := domain.ToOrderStatus(req.Status)
	if !valid {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown status "+strings.TrimSpace(req.Status), http.StatusBadRequest))
		return
	}

	updated, err := h.status.AdvanceStatus(ctx, order, target)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderToResponse(updated))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.status == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	order, ok := h.resolveOrder(w, r)
	if !ok {
		return
	}

	updated, err := h.status.Cancel(ctx, order)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderToResponse(updated))
}

// resolveOrder looks up the order referenced by the URL so transitions are
// checked against its current status.
func (h *OrderHandlers) resolveOrder(w http.ResponseWriter, r *http.Request) (domain.Order, bool) {
	ctx := r.Context()

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return domain.Order{}, false
	}

	listed, err := h.status.ListOrders(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return domain.Order{}, false
	}
	for _, order := range listed {
		if order.ID == orderID {
			return order, true
		}
	}

	writeOrderError(ctx, w, orders.ErrOrderNotFound)
	return domain.Order{}, false
}
