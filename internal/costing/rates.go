package costing

import "github.com/shopspring/decimal"

// WorkCenterRates holds the four hourly-rate components of a work-center.
type WorkCenterRates struct {
	Amortization decimal.Decimal
	Labor        decimal.Decimal
	Tooling      decimal.Decimal
	Overhead     decimal.Decimal
}

// Total is the full hourly rate, the sum of the four components.
func (r WorkCenterRates) Total() decimal.Decimal {
	return r.Amortization.Add(r.Labor).Add(r.Tooling).Add(r.Overhead)
}

// PriceTier is one weight band of a material price category.
// MaxWeightKg == nil means the band is open-ended.
type PriceTier struct {
	MinWeightKg decimal.Decimal
	MaxWeightKg *decimal.Decimal
	PricePerKg  decimal.Decimal
}

// SelectTier picks the narrowest band containing weightKg: the band with the
// highest lower bound still at or below the weight.
func SelectTier(tiers []PriceTier, weightKg decimal.Decimal) (PriceTier, bool) {
	var best PriceTier
	found := false
	for _, t := range tiers {
		if weightKg.LessThan(t.MinWeightKg) {
			continue
		}
		if t.MaxWeightKg != nil && weightKg.GreaterThan(*t.MaxWeightKg) {
			continue
		}
		if !found || t.MinWeightKg.GreaterThan(best.MinWeightKg) {
			best = t
			found = true
		}
	}
	return best, found
}
