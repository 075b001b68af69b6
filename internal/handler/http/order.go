package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: logger}
}

// TransitionRequest is the JSON body of an order status change.
type TransitionRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// Create handles POST /api/v1/order/new
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateOrderInput
	if err := decodeJSON(w, r, &input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	o, err := h.service.CreateOrder(r.Context(), input, auth.UserFromContext(r.Context()).ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, o)
}

// Get handles GET /api/v1/order/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, o)
}

// Mine handles GET /api/v1/orders/me
func (h *OrderHandler) Mine(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrdersForUser(r.Context(), auth.UserFromContext(r.Context()).ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, orders)
}

// ListAll handles GET /api/v1/admin/orders
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAllOrders(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, list)
}

// Transition handles PUT /api/v1/admin/order/{id}. Stock problems are
// reported through events and logs; the response only confirms the move.
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if req.Status == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("status is required"), h.logger)
		return
	}

	if _, err := h.service.Transition(r.Context(), chi.URLParam(r, "id"), req.Status); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Success: true})
}

// Delete handles DELETE /api/v1/admin/order/{id}
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Success: true})
}
