package costing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RoutingOperation is one step of a part's technological routing.
// Setup time is spent once per batch; operation time once per unit.
type RoutingOperation struct {
	Seq          int
	WorkCenterID int64 // 0 when the work-center reference is missing
	SetupMin     decimal.Decimal
	OpMin        decimal.Decimal
}

// TimeTotals is the aggregated time of one work-center across a routing.
type TimeTotals struct {
	WorkCenterID int64
	SetupMin     decimal.Decimal // whole batch
	OpMin        decimal.Decimal // per unit
}

// AggregateRouting walks the routing in ascending sequence order and sums
// setup and per-unit operation minutes per work-center. Pure function.
//
// An operation without a work-center reference fails the whole aggregation
// with MissingWorkCenterError; a duplicate sequence number fails it with
// DuplicateSeqError. Result entries are ordered by work-center id.
func AggregateRouting(ops []RoutingOperation) ([]TimeTotals, error) {
	sorted := make([]RoutingOperation, len(ops))
	copy(sorted, ops)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	totals := make(map[int64]TimeTotals, len(sorted))
	for i, op := range sorted {
		if i > 0 && op.Seq == sorted[i-1].Seq {
			return nil, &DuplicateSeqError{Seq: op.Seq}
		}
		if op.WorkCenterID == 0 {
			return nil, &MissingWorkCenterError{Seq: op.Seq}
		}
		t := totals[op.WorkCenterID]
		t.WorkCenterID = op.WorkCenterID
		t.SetupMin = t.SetupMin.Add(op.SetupMin)
		t.OpMin = t.OpMin.Add(op.OpMin)
		totals[op.WorkCenterID] = t
	}

	out := make([]TimeTotals, 0, len(totals))
	for _, t := range totals {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkCenterID < out[j].WorkCenterID })
	return out, nil
}
