package checkout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"
)

// ErrTemporarilyUnavailable is returned when stock reservation kept losing
// races within the retry budget. The caller may ask the customer to retry.
var ErrTemporarilyUnavailable = errors.New("product temporarily unavailable")

// InsufficientStockError rejects a build whose demand exceeds available stock.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d, available %d)",
		e.ProductID, e.Requested, e.Available)
}

// ValidationError reports every problem found in a build request as a
// field → messages map, so callers can relay actionable detail. Line-level
// problems use keys of the form "items[i]".
type ValidationError struct {
	Fields map[string][]string
}

func newValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records one problem for a field.
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty reports whether no problems were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("invalid order request:")
	for _, f := range fields {
		fmt.Fprintf(&b, " %s: %s;", f, strings.Join(e.Fields[f], ", "))
	}
	return strings.TrimSuffix(b.String(), ";")
}
