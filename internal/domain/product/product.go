package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ClearanceWindowDays is the expiry window inside which stock enters
// clearance pricing.
const ClearanceWindowDays = 30

// Product represents a catalog item available for purchase. Prices are VND.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	// SkinProfile tags the product for profile-matched pricing,
	// e.g. "oily", "dry", "sensitive". Empty means untagged.
	SkinProfile string
	// ExpiresAt is the shelf expiry date. Nil means non-perishable.
	ExpiresAt *time.Time
	// FlashSalePercent is a whole-number percentage (0-100) active
	// until FlashSaleEndsAt. Zero means no flash sale configured.
	FlashSalePercent decimal.Decimal
	FlashSaleEndsAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	// DeletedAt marks a soft-deleted product. Soft-deleted products stay
	// readable for historical orders but are not sellable.
	DeletedAt *time.Time
}

// IsDeleted reports whether the product has been soft-deleted.
func (p *Product) IsDeleted() bool {
	return p.DeletedAt != nil
}

// Expired reports whether the product's shelf life has passed at the given time.
func (p *Product) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// DaysUntilExpiry returns the number of whole days until expiry. The second
// return value is false for non-perishable products.
func (p *Product) DaysUntilExpiry(now time.Time) (int, bool) {
	if p.ExpiresAt == nil {
		return 0, false
	}
	return int(p.ExpiresAt.Sub(now).Hours() / 24), true
}

// FlashSaleActive reports whether a flash sale is configured and its end time
// is strictly in the future.
func (p *Product) FlashSaleActive(now time.Time) bool {
	return p.FlashSalePercent.IsPositive() &&
		p.FlashSaleEndsAt != nil &&
		p.FlashSaleEndsAt.After(now)
}

// Repository defines persistence operations for the product catalog.
//
// TryDecrementStock and IncrementStock are the only stock mutation paths and
// must be atomic with respect to concurrent callers: TryDecrementStock either
// applies the full decrement or reports false, never driving stock negative.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Save(ctx context.Context, p *Product) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	TryDecrementStock(ctx context.Context, id string, qty int) (bool, error)
	IncrementStock(ctx context.Context, id string, qty int) error
}
