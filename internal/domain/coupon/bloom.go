package coupon

import (
	"context"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

// False positive rate for the code membership filter. False positives only
// cost one extra store round-trip; false negatives never happen.
const bloomFPR = 0.001

// BloomGuard fronts a Lookup with a bloom filter over known coupon codes so
// that definitely-unknown codes are rejected without a store round-trip.
// The filter is built once at startup; codes added later are missed until
// the next rebuild, which is acceptable for reference data.
type BloomGuard struct {
	filter *bloom.BloomFilter
	next   Lookup
}

// NewBloomGuard builds the membership filter from all codes currently in the
// store and returns a guarded Lookup.
func NewBloomGuard(ctx context.Context, store Store) (*BloomGuard, error) {
	codes, err := store.ListCodes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupon codes")
	}

	capacity := uint(len(codes))
	if capacity < 1024 {
		capacity = 1024
	}
	filter := bloom.NewWithEstimates(capacity, bloomFPR)
	for _, code := range codes {
		filter.AddString(strings.ToUpper(code))
	}

	return &BloomGuard{filter: filter, next: store}, nil
}

// Resolve short-circuits codes the filter has never seen, otherwise defers
// to the underlying lookup.
func (g *BloomGuard) Resolve(ctx context.Context, code string) (*Rule, error) {
	if !g.filter.TestString(strings.ToUpper(code)) {
		return nil, nil
	}
	return g.next.Resolve(ctx, code)
}
