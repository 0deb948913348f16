package costing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports a malformed calculation input. The caller fixes the
// named field and resubmits; it is never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrInvalidQuantity rejects a batch quantity below 1; setup cost cannot be
// amortized over an empty batch.
var ErrInvalidQuantity = &ValidationError{Field: "quantity", Reason: "must be at least 1"}

// MissingWorkCenterError marks a routing operation with no work-center
// reference. It fails the whole aggregation: understating cost is worse
// than failing loudly.
type MissingWorkCenterError struct {
	Seq int
}

func (e *MissingWorkCenterError) Error() string {
	return fmt.Sprintf("operation seq %d references no work-center", e.Seq)
}

// MissingRateError marks a referenced work-center for which no hourly rate
// record could be resolved.
type MissingRateError struct {
	WorkCenterID int64
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("no rate data for work-center %d", e.WorkCenterID)
}

// MissingPriceError marks a material category with no price band covering the
// requested weight.
type MissingPriceError struct {
	CategoryID int64
	WeightKg   decimal.Decimal
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("no price band for material category %d at %s kg", e.CategoryID, e.WeightKg)
}

// DuplicateSeqError marks a routing with two operations sharing a sequence
// number. That is a data-integrity violation and is never silently resolved.
type DuplicateSeqError struct {
	Seq int
}

func (e *DuplicateSeqError) Error() string {
	return fmt.Sprintf("duplicate operation seq %d in routing", e.Seq)
}
