package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type productResponse struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock"`
	SkinProfile      string          `json:"skin_profile,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	FlashSalePercent decimal.Decimal `json:"flash_sale_percent"`
	FlashSaleEndsAt  *time.Time      `json:"flash_sale_ends_at,omitempty"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = productResponse{
			ID:               p.ID,
			Name:             p.Name,
			Description:      p.Description,
			Price:            p.Price,
			Stock:            p.Stock,
			SkinProfile:      p.SkinProfile,
			ExpiresAt:        p.ExpiresAt,
			FlashSalePercent: p.FlashSalePercent,
			FlashSaleEndsAt:  p.FlashSaleEndsAt,
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}
