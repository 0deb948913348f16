package costing

import (
	"errors"
	"testing"
)

func TestAggregateRouting_SumsPerWorkCenterInSeqOrder(t *testing.T) {
	// Deliberately unsorted input; the aggregator walks ascending seq.
	ops := []RoutingOperation{
		{Seq: 30, WorkCenterID: 2, SetupMin: dec("10"), OpMin: dec("1.5")},
		{Seq: 10, WorkCenterID: 1, SetupMin: dec("30"), OpMin: dec("2")},
		{Seq: 20, WorkCenterID: 1, SetupMin: dec("5"), OpMin: dec("0.5")},
	}

	totals, err := AggregateRouting(ops)
	if err != nil {
		t.Fatalf("AggregateRouting returned error: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("expected totals for 2 work-centers, got %d", len(totals))
	}

	decEqual(t, "wc1 setup", totals[0].SetupMin, "35")
	decEqual(t, "wc1 op", totals[0].OpMin, "2.5")
	decEqual(t, "wc2 setup", totals[1].SetupMin, "10")
	decEqual(t, "wc2 op", totals[1].OpMin, "1.5")
}

func TestAggregateRouting_MissingWorkCenterBlocksEverything(t *testing.T) {
	ops := []RoutingOperation{
		{Seq: 10, WorkCenterID: 1, SetupMin: dec("30"), OpMin: dec("2")},
		{Seq: 20, WorkCenterID: 0, SetupMin: dec("5"), OpMin: dec("1")},
	}

	totals, err := AggregateRouting(ops)
	var merr *MissingWorkCenterError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MissingWorkCenterError, got %v", err)
	}
	if merr.Seq != 20 {
		t.Fatalf("error names seq %d, want 20", merr.Seq)
	}
	if totals != nil {
		t.Fatalf("aggregation must fail entirely, got partial totals %+v", totals)
	}
}

func TestAggregateRouting_DuplicateSeqRejected(t *testing.T) {
	ops := []RoutingOperation{
		{Seq: 10, WorkCenterID: 1, SetupMin: dec("30"), OpMin: dec("2")},
		{Seq: 10, WorkCenterID: 2, SetupMin: dec("5"), OpMin: dec("1")},
	}

	_, err := AggregateRouting(ops)
	var derr *DuplicateSeqError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DuplicateSeqError, got %v", err)
	}
	if derr.Seq != 10 {
		t.Fatalf("error names seq %d, want 10", derr.Seq)
	}
}

func TestAggregateRouting_EmptyRouting(t *testing.T) {
	totals, err := AggregateRouting(nil)
	if err != nil {
		t.Fatalf("AggregateRouting returned error: %v", err)
	}
	if len(totals) != 0 {
		t.Fatalf("expected no totals, got %+v", totals)
	}
}

func TestSelectTier_PicksNarrowestContainingBand(t *testing.T) {
	five := dec("5")
	tiers := []PriceTier{
		{MinWeightKg: dec("0"), MaxWeightKg: &five, PricePerKg: dec("50")},
		{MinWeightKg: dec("1"), MaxWeightKg: &five, PricePerKg: dec("45")},
		{MinWeightKg: dec("5"), PricePerKg: dec("40")},
	}

	tier, ok := SelectTier(tiers, dec("2"))
	if !ok {
		t.Fatal("expected a tier for weight 2")
	}
	decEqual(t, "price for 2kg", tier.PricePerKg, "45")

	tier, ok = SelectTier(tiers, dec("80"))
	if !ok {
		t.Fatal("expected the open-ended tier for weight 80")
	}
	decEqual(t, "price for 80kg", tier.PricePerKg, "40")

	if _, ok := SelectTier(tiers[1:], dec("0.5")); ok {
		t.Fatal("weight below every band must not match")
	}
}
