package customer

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Tier classifies a customer by cumulative spend.
type Tier string

const (
	TierNone     Tier = "none"
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Cumulative spend thresholds (VND) for each tier.
var (
	bronzeThreshold   = decimal.NewFromInt(2_000_000)
	silverThreshold   = decimal.NewFromInt(5_000_000)
	goldThreshold     = decimal.NewFromInt(10_000_000)
	platinumThreshold = decimal.NewFromInt(20_000_000)
)

// tierDiscounts maps each tier to its discount fraction.
var tierDiscounts = map[Tier]decimal.Decimal{
	TierNone:     decimal.Zero,
	TierBronze:   decimal.NewFromFloat(0.05),
	TierSilver:   decimal.NewFromFloat(0.10),
	TierGold:     decimal.NewFromFloat(0.15),
	TierPlatinum: decimal.NewFromFloat(0.20),
}

// DiscountFraction returns the loyalty discount for the tier in [0,1].
func (t Tier) DiscountFraction() decimal.Decimal {
	if d, ok := tierDiscounts[t]; ok {
		return d
	}
	return decimal.Zero
}

// AtLeast reports whether the tier ranks at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return tierRank(t) >= tierRank(other)
}

func tierRank(t Tier) int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 2
	case TierGold:
		return 3
	case TierPlatinum:
		return 4
	default:
		return 0
	}
}

// TierForSpend derives the loyalty tier from cumulative spend.
func TierForSpend(spend decimal.Decimal) Tier {
	switch {
	case spend.GreaterThanOrEqual(platinumThreshold):
		return TierPlatinum
	case spend.GreaterThanOrEqual(goldThreshold):
		return TierGold
	case spend.GreaterThanOrEqual(silverThreshold):
		return TierSilver
	case spend.GreaterThanOrEqual(bronzeThreshold):
		return TierBronze
	default:
		return TierNone
	}
}

// Customer represents a registered shopper.
type Customer struct {
	ID    string
	Name  string
	Email string
	// Tier is derived from TotalSpent; AddSpend keeps the two consistent.
	Tier       Tier
	TotalSpent decimal.Decimal
	// ProfileCompleted is set once the customer has finished the skin quiz.
	ProfileCompleted bool
	// SkinProfile is the quiz outcome, matched against product tags.
	SkinProfile string
}

// AddSpend accumulates completed-order spend and re-derives the tier.
// Called when an order reaches its completed state.
func (c *Customer) AddSpend(amount decimal.Decimal) {
	c.TotalSpent = c.TotalSpent.Add(amount)
	c.Tier = TierForSpend(c.TotalSpent)
}

// Repository defines persistence operations for customers.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
	Save(ctx context.Context, c *Customer) error
}
