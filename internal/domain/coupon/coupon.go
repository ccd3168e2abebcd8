package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Kind enumerates the supported coupon discount kinds.
type Kind string

const (
	// KindPercentage discounts the running price by Value percent,
	// optionally capped at MaxDiscount.
	KindPercentage Kind = "percentage"
	// KindFixedAmount subtracts Value, capped at the running price.
	KindFixedAmount Kind = "fixed_amount"
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
// Rules are read-only reference data once resolved.
type Rule struct {
	Code        string
	Kind        Kind
	Value       decimal.Decimal
	Description string
	// MinOrder is the minimum running price required for the coupon to
	// apply. Zero means no minimum.
	MinOrder decimal.Decimal
	// MaxDiscount caps percentage discounts. Zero means uncapped.
	MaxDiscount decimal.Decimal
	ValidFrom   *time.Time
	ValidUntil  *time.Time
}

// ValidAt reports whether the rule is inside its validity window.
func (r *Rule) ValidAt(now time.Time) bool {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return false
	}
	return true
}

// Lookup resolves coupon codes to rules. Unknown codes resolve to (nil, nil):
// an absent coupon is not an error, it simply does not apply.
type Lookup interface {
	Resolve(ctx context.Context, code string) (*Rule, error)
}

// Store extends Lookup with the operations the ingest and bloom-guard
// plumbing need.
type Store interface {
	Lookup
	ListCodes(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, r *Rule) error
}
