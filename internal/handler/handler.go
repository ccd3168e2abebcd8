// Package handler exposes the order engine over a small JSON HTTP API.
// Domain errors are mapped to status codes here; nothing below this layer
// knows about HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/QuynYang/glowaura/internal/checkout"
	"github.com/QuynYang/glowaura/internal/domain/customer"
	"github.com/QuynYang/glowaura/internal/domain/order"
	"github.com/QuynYang/glowaura/internal/domain/product"
	"github.com/QuynYang/glowaura/internal/service"
)

// ProductLister is the catalog read surface the handler needs.
type ProductLister interface {
	List(ctx context.Context) ([]product.Product, error)
}

// Handler wires the order service and product catalog to HTTP routes.
type Handler struct {
	orders   *service.Orders
	products ProductLister
	lg       *zap.Logger
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(orders *service.Orders, products ProductLister, lg *zap.Logger) *Handler {
	return &Handler{orders: orders, products: products, lg: lg}
}

// Routes returns the route table for the API.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", h.listProducts)
	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("GET /orders/number/{number}", h.getOrderByNumber)
	mux.HandleFunc("POST /orders/{id}/confirm", h.transition(func(ctx context.Context, id, actor string) (*order.Order, error) {
		return h.orders.Confirm(ctx, id, actor)
	}))
	mux.HandleFunc("POST /orders/{id}/pay", h.payOrder)
	mux.HandleFunc("POST /orders/{id}/payment-failed", h.transition(func(ctx context.Context, id, actor string) (*order.Order, error) {
		return h.orders.FailPayment(ctx, id, actor)
	}))
	mux.HandleFunc("POST /orders/{id}/process", h.transition(func(ctx context.Context, id, actor string) (*order.Order, error) {
		return h.orders.StartProcessing(ctx, id, actor)
	}))
	mux.HandleFunc("POST /orders/{id}/ship", h.transition(func(ctx context.Context, id, actor string) (*order.Order, error) {
		return h.orders.StartShipping(ctx, id, actor)
	}))
	mux.HandleFunc("POST /orders/{id}/deliver", h.transition(func(ctx context.Context, id, actor string) (*order.Order, error) {
		return h.orders.MarkDelivered(ctx, id, actor)
	}))
	mux.HandleFunc("POST /orders/{id}/complete", h.transition(func(ctx context.Context, id, actor string) (*order.Order, error) {
		return h.orders.Complete(ctx, id, actor)
	}))
	mux.HandleFunc("POST /orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /orders/{id}/refund", h.refundOrder)
	return mux
}

type errorResponse struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.lg.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps domain and checkout errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		verr    *checkout.ValidationError
		stock   *checkout.InsufficientStockError
		illegal *order.IllegalTransitionError
	)
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "validation failed",
			Fields:  verr.Fields,
		})
	case errors.As(err, &stock):
		h.writeError(w, http.StatusUnprocessableEntity, stock.Error())
	case errors.As(err, &illegal):
		h.writeError(w, http.StatusConflict, illegal.Error())
	case errors.Is(err, order.ErrEmptyReason), errors.Is(err, order.ErrEmptyOrder):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, customer.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, checkout.ErrTemporarilyUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.lg.Error("request failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// actor identifies who triggered the request for the audit trail.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "anonymous"
}
