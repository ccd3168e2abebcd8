package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/QuynYang/glowaura/internal/checkout"
	"github.com/QuynYang/glowaura/internal/domain/order"
	"github.com/QuynYang/glowaura/internal/pricing"
)

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID      string            `json:"customer_id"`
	Items           []cartItemRequest `json:"items"`
	ShippingAddress string            `json:"shipping_address"`
	Phone           string            `json:"phone"`
	Receiver        string            `json:"receiver"`
	PaymentMethod   string            `json:"payment_method"`
	CouponCode      string            `json:"coupon_code,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	GiftWrap        bool              `json:"gift_wrap,omitempty"`
	Express         bool              `json:"express,omitempty"`
}

type orderResponse struct {
	ID                string            `json:"id"`
	Number            string            `json:"number"`
	CustomerID        string            `json:"customer_id"`
	Status            string            `json:"status"`
	Items             []order.OrderItem `json:"items"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
	ShippingFee       decimal.Decimal   `json:"shipping_fee"`
	Discount          decimal.Decimal   `json:"discount"`
	Total             decimal.Decimal   `json:"total"`
	PaymentMethod     string            `json:"payment_method"`
	ShippingAddress   string            `json:"shipping_address"`
	Receiver          string            `json:"receiver"`
	CouponCode        string            `json:"coupon_code,omitempty"`
	CancelReason      string            `json:"cancel_reason,omitempty"`
	EstimatedDelivery *time.Time        `json:"estimated_delivery,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type createOrderResponse struct {
	Order    orderResponse     `json:"order"`
	Pricing  []*pricing.Result `json:"pricing"`
	Warnings []string          `json:"warnings,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:                o.ID,
		Number:            o.Number,
		CustomerID:        o.CustomerID,
		Status:            string(o.Status),
		Items:             o.Items,
		Subtotal:          o.Subtotal,
		ShippingFee:       o.ShippingFee,
		Discount:          o.Discount,
		Total:             o.TotalAmount(),
		PaymentMethod:     string(o.PaymentMethod),
		ShippingAddress:   o.ShippingAddress,
		Receiver:          o.Receiver,
		CouponCode:        o.CouponCode,
		CancelReason:      o.CancelReason,
		EstimatedDelivery: o.EstimatedDelivery,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]checkout.CartItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = checkout.CartItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	built, err := h.orders.Create(r.Context(), actor(r), checkout.Request{
		CustomerID:      req.CustomerID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
		Receiver:        req.Receiver,
		PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
		CouponCode:      req.CouponCode,
		Notes:           req.Notes,
		GiftWrap:        req.GiftWrap,
		Express:         req.Express,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, createOrderResponse{
		Order:    toOrderResponse(built.Order),
		Pricing:  built.Pricing,
		Warnings: built.Warnings,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByNumber(r.Context(), r.PathValue("number"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// transition adapts one service transition method into an HTTP handler.
func (h *Handler) transition(step func(ctx context.Context, id, actor string) (*order.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := step(r.Context(), r.PathValue("id"), actor(r))
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toOrderResponse(o))
	}
}

type payRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TransactionID == "" {
		h.writeError(w, http.StatusBadRequest, "transaction_id required")
		return
	}

	o, err := h.orders.Pay(r.Context(), r.PathValue("id"), req.TransactionID, actor(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"), req.Reason, actor(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.Refund(r.Context(), r.PathValue("id"), req.Reason, actor(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}
