package costing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decEqual(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	w := dec(want)
	if got.Sub(w).Abs().GreaterThan(decimal.New(1, -9)) {
		t.Fatalf("%s = %s, want %s", name, got, w)
	}
}

func referenceInput() Input {
	return Input{
		Quantity: 10,
		Times: []TimeTotals{
			{WorkCenterID: 1, SetupMin: dec("30"), OpMin: dec("2")},
		},
		Rates: map[int64]WorkCenterRates{
			1: {Amortization: dec("400"), Labor: dec("300"), Tooling: dec("200"), Overhead: dec("100")},
		},
		OverheadCoeff: dec("1.1"),
		MarginCoeff:   dec("1.2"),
		WeightKg:      dec("0.5"),
		PricePerKg:    dec("45"),
		WasteCoeff:    dec("1.1"),
	}
}

func TestCalculate_ReferenceScenario(t *testing.T) {
	b, err := Calculate(referenceInput())
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}

	decEqual(t, "setup", b.Setup, "50")
	decEqual(t, "machining", b.Machining, "33.3333333333333333")
	decEqual(t, "overhead", b.Overhead, "8.3333333333333333")
	decEqual(t, "margin", b.Margin, "18.3333333333333333")
	decEqual(t, "material", b.Material, "24.75")
	decEqual(t, "coop", b.Coop, "0")

	if !b.Unit.Equal(dec("134.75")) {
		t.Fatalf("unit = %s, want 134.75", b.Unit)
	}
}

func TestCalculate_UnitEqualsComponentSum(t *testing.T) {
	in := referenceInput()
	in.CoopLines = []decimal.Decimal{dec("3.10"), dec("1.90")}
	in.CoopCoeff = dec("1.05")

	b, err := Calculate(in)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}

	sum := b.Setup.Add(b.Machining).Add(b.Overhead).Add(b.Margin).Add(b.Material).Add(b.Coop)
	if b.Unit.Sub(sum).Abs().GreaterThan(dec("0.005")) {
		t.Fatalf("unit %s deviates from component sum %s by more than half a subunit", b.Unit, sum)
	}
}

func TestCalculate_SetupAmortizationMonotonic(t *testing.T) {
	small := referenceInput()
	large := referenceInput()
	large.Quantity = 100

	bSmall, err := Calculate(small)
	if err != nil {
		t.Fatalf("Calculate(q=10) returned error: %v", err)
	}
	bLarge, err := Calculate(large)
	if err != nil {
		t.Fatalf("Calculate(q=100) returned error: %v", err)
	}

	if !bLarge.Setup.LessThan(bSmall.Setup) {
		t.Fatalf("setup(q=100)=%s not below setup(q=10)=%s", bLarge.Setup, bSmall.Setup)
	}
	// Per-unit machining does not amortize.
	decEqual(t, "machining q=100", bLarge.Machining, bSmall.Machining.String())
}

func TestCalculate_ZeroQuantityFails(t *testing.T) {
	in := referenceInput()
	in.Quantity = 0

	_, err := Calculate(in)
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestCalculate_CoefficientBelowFloorFails(t *testing.T) {
	in := referenceInput()
	in.OverheadCoeff = dec("0.9")

	_, err := Calculate(in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "overhead_coeff" {
		t.Fatalf("error names field %q, want overhead_coeff", verr.Field)
	}
}

func TestCalculate_NegativeRateComponentFails(t *testing.T) {
	in := referenceInput()
	in.Rates[1] = WorkCenterRates{Amortization: dec("-1"), Labor: dec("300"), Tooling: dec("200"), Overhead: dec("100")}

	b, err := Calculate(in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !b.Unit.IsZero() {
		t.Fatalf("failed calculation must not return a partial breakdown, got unit %s", b.Unit)
	}
}

func TestCalculate_MissingRateFails(t *testing.T) {
	in := referenceInput()
	in.Times = append(in.Times, TimeTotals{WorkCenterID: 7, SetupMin: dec("5"), OpMin: dec("1")})

	_, err := Calculate(in)
	var merr *MissingRateError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MissingRateError, got %v", err)
	}
	if merr.WorkCenterID != 7 {
		t.Fatalf("error names work-center %d, want 7", merr.WorkCenterID)
	}
}

func TestCalculate_FinalRoundingHalfToEven(t *testing.T) {
	// Material-only inputs land the total exactly on a half subunit.
	in := Input{
		Quantity:      1,
		OverheadCoeff: dec("1"),
		MarginCoeff:   dec("1"),
		WasteCoeff:    dec("1"),
		PricePerKg:    dec("0.125"),
		WeightKg:      dec("1"),
	}
	b, err := Calculate(in)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	if !b.Unit.Equal(dec("0.12")) {
		t.Fatalf("0.125 rounds to %s, want 0.12 (half to even)", b.Unit)
	}

	in.PricePerKg = dec("0.135")
	b, err = Calculate(in)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	if !b.Unit.Equal(dec("0.14")) {
		t.Fatalf("0.135 rounds to %s, want 0.14 (half to even)", b.Unit)
	}
}

func TestCalculate_CooperationCoefficientApplied(t *testing.T) {
	in := Input{
		Quantity:      1,
		OverheadCoeff: dec("1"),
		MarginCoeff:   dec("1"),
		WasteCoeff:    dec("1"),
		CoopLines:     []decimal.Decimal{dec("10"), dec("5")},
		CoopCoeff:     dec("1.2"),
	}
	b, err := Calculate(in)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	decEqual(t, "coop", b.Coop, "18")
	decEqual(t, "unit", b.Unit, "18")
}
