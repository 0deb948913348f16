package costing

import (
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	one   = decimal.NewFromInt(1)
	sixty = decimal.NewFromInt(60)
)

// Input carries everything the breakdown calculation needs: aggregated times,
// resolved hourly rates, the target quantity, the pricing coefficients and the
// material/cooperation figures. Coefficients are multiplicative with floor 1.0.
type Input struct {
	Quantity int64
	Times    []TimeTotals
	Rates    map[int64]WorkCenterRates

	OverheadCoeff decimal.Decimal
	MarginCoeff   decimal.Decimal

	WeightKg   decimal.Decimal
	PricePerKg decimal.Decimal
	WasteCoeff decimal.Decimal

	CoopLines []decimal.Decimal
	CoopCoeff decimal.Decimal
}

// Breakdown is the per-unit cost split. Components keep full precision;
// only Unit is rounded, half-to-even, to the currency subunit.
type Breakdown struct {
	Setup     decimal.Decimal
	Machining decimal.Decimal
	Overhead  decimal.Decimal
	Margin    decimal.Decimal
	Material  decimal.Decimal
	Coop      decimal.Decimal
	Unit      decimal.Decimal
}

// The steps run in this exact order; overhead applies before margin, and the
// final total is the only rounded figure. The order is a contract, reviewable
// here rather than buried in arithmetic.
var pipeline = [...]func(Input, *Breakdown){
	stepSetup,
	stepMachining,
	stepOverhead,
	stepMargin,
	stepMaterial,
	stepCooperation,
	stepUnitTotal,
}

// Calculate runs the cost pipeline. It either returns a complete breakdown or
// a structured error naming the offending input; never a partial result.
func Calculate(in Input) (Breakdown, error) {
	if err := in.validate(); err != nil {
		return Breakdown{}, err
	}
	var b Breakdown
	for _, step := range pipeline {
		step(in, &b)
	}
	return b, nil
}

func (in Input) validate() error {
	if in.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if in.OverheadCoeff.LessThan(one) {
		return &ValidationError{Field: "overhead_coeff", Reason: "below floor 1.0"}
	}
	if in.MarginCoeff.LessThan(one) {
		return &ValidationError{Field: "margin_coeff", Reason: "below floor 1.0"}
	}
	if in.WasteCoeff.LessThan(one) {
		return &ValidationError{Field: "waste_coeff", Reason: "below floor 1.0"}
	}
	if len(in.CoopLines) > 0 && in.CoopCoeff.LessThan(one) {
		return &ValidationError{Field: "coop_coeff", Reason: "below floor 1.0"}
	}
	if in.WeightKg.IsNegative() {
		return &ValidationError{Field: "material_weight_kg", Reason: "negative"}
	}
	if in.PricePerKg.IsNegative() {
		return &ValidationError{Field: "material_price_per_kg", Reason: "negative"}
	}
	for i, l := range in.CoopLines {
		if l.IsNegative() {
			return &ValidationError{Field: "coop_lines", Reason: "negative line " + strconv.Itoa(i)}
		}
	}
	for _, t := range in.Times {
		r, ok := in.Rates[t.WorkCenterID]
		if !ok {
			return &MissingRateError{WorkCenterID: t.WorkCenterID}
		}
		for _, c := range []decimal.Decimal{r.Amortization, r.Labor, r.Tooling, r.Overhead} {
			if c.IsNegative() {
				return &ValidationError{Field: "work_center_rate", Reason: "negative component for work-center " + strconv.FormatInt(t.WorkCenterID, 10)}
			}
		}
	}
	return nil
}

// Setup minutes are paid once per batch, so the cost is amortized across the
// whole requested quantity: larger batches dilute changeover cost per unit.
func stepSetup(in Input, b *Breakdown) {
	sum := decimal.Zero
	for _, t := range in.Times {
		rate := in.Rates[t.WorkCenterID].Total().Div(sixty)
		sum = sum.Add(t.SetupMin.Mul(rate))
	}
	b.Setup = sum.Div(decimal.NewFromInt(in.Quantity))
}

func stepMachining(in Input, b *Breakdown) {
	sum := decimal.Zero
	for _, t := range in.Times {
		rate := in.Rates[t.WorkCenterID].Total().Div(sixty)
		sum = sum.Add(t.OpMin.Mul(rate))
	}
	b.Machining = sum
}

func stepOverhead(in Input, b *Breakdown) {
	b.Overhead = b.Setup.Add(b.Machining).Mul(in.OverheadCoeff.Sub(one))
}

func stepMargin(in Input, b *Breakdown) {
	b.Margin = b.Setup.Add(b.Machining).Add(b.Overhead).Mul(in.MarginCoeff.Sub(one))
}

func stepMaterial(in Input, b *Breakdown) {
	b.Material = in.WeightKg.Mul(in.PricePerKg).Mul(in.WasteCoeff)
}

func stepCooperation(in Input, b *Breakdown) {
	sum := decimal.Zero
	for _, l := range in.CoopLines {
		sum = sum.Add(l)
	}
	if len(in.CoopLines) > 0 {
		sum = sum.Mul(in.CoopCoeff)
	}
	b.Coop = sum
}

func stepUnitTotal(_ Input, b *Breakdown) {
	total := b.Setup.
		Add(b.Machining).
		Add(b.Overhead).
		Add(b.Margin).
		Add(b.Material).
		Add(b.Coop)
	b.Unit = total.RoundBank(2)
}
