package order

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// GenerateNumber produces an order number of the form ORD<yyyymmdd><4 digits>.
// Numbers are opaque to callers; only uniqueness matters.
func GenerateNumber(now time.Time) string {
	return fmt.Sprintf("ORD%s%04d", now.Format("20060102"), rand.IntN(10_000))
}

// FallbackNumber produces a collision-proof order number for the rare case
// where every regeneration attempt collided.
func FallbackNumber(now time.Time) string {
	return fmt.Sprintf("ORD%s-%s", now.Format("20060102"), uuid.New().String()[:8])
}
