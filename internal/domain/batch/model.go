package batch

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the batch lifecycle tag: draft -> frozen -> (unfrozen) -> draft.
type State string

const (
	StateDraft  State = "draft"
	StateFrozen State = "frozen"
)

// FrozenInfo exists exactly when State is StateFrozen.
type FrozenInfo struct {
	At time.Time
	By string
}

// Snapshot holds the calculation inputs captured at the last recomputation.
// A frozen row is self-describing: reproducing its numbers never requires
// dereferencing the catalog. The stock-waste coefficient is snapshotted
// explicitly so later changes to the default cannot drift a frozen quote.
type Snapshot struct {
	MaterialCategoryID int64 // 0 = no material line
	MaterialWeightKg   decimal.Decimal
	MaterialPricePerKg decimal.Decimal
	WasteCoeff         decimal.Decimal
	OverheadCoeff      decimal.Decimal
	MarginCoeff        decimal.Decimal
	CoopCoeff          decimal.Decimal
	CoopLinesTotal     decimal.Decimal // raw sum before the coefficient
}

// Outputs are the per-unit cost components of the last recomputation.
// Unit is the only rounded figure.
type Outputs struct {
	Machining decimal.Decimal
	Setup     decimal.Decimal
	Overhead  decimal.Decimal
	Margin    decimal.Decimal
	Material  decimal.Decimal
	Coop      decimal.Decimal
	Unit      decimal.Decimal
}

// Batch is a cost estimate for producing Quantity units of a part. Version
// increases by exactly 1 per successful mutating write; a stale version is
// rejected, never merged.
type Batch struct {
	ID       int64
	PartID   int64
	Quantity int64
	Version  int64

	State  State
	Frozen *FrozenInfo // non-nil iff State == StateFrozen

	Snapshot Snapshot
	Outputs  Outputs

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *Batch) IsFrozen() bool { return b.State == StateFrozen }
