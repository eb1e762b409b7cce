package core

import (
	"github.com/shopspring/decimal"
)

// IncrementTier maps a price band to its minimum bid increment. A tier
// applies to displayed prices strictly below Ceiling.
type IncrementTier struct {
	Ceiling decimal.Decimal `json:"ceiling"`
	Step    decimal.Decimal `json:"step"`
}

// IncrementSchedule is a step function from current displayed price to the
// required bid increment. Tiers must be ordered by ascending Ceiling;
// FinalStep applies at or above the last ceiling.
type IncrementSchedule struct {
	Tiers     []IncrementTier `json:"tiers"`
	FinalStep decimal.Decimal `json:"final_step"`
}

// DefaultIncrementSchedule returns the marketplace default step function.
func DefaultIncrementSchedule() IncrementSchedule {
	return IncrementSchedule{
		Tiers: []IncrementTier{
			{Ceiling: decimal.NewFromInt(1_000), Step: decimal.NewFromInt(25)},
			{Ceiling: decimal.NewFromInt(10_000), Step: decimal.NewFromInt(100)},
			{Ceiling: decimal.NewFromInt(25_000), Step: decimal.NewFromInt(250)},
			{Ceiling: decimal.NewFromInt(100_000), Step: decimal.NewFromInt(500)},
		},
		FinalStep: decimal.NewFromInt(1_000),
	}
}

// FlatIncrementSchedule returns a schedule with a single step at every
// price level.
func FlatIncrementSchedule(step decimal.Decimal) IncrementSchedule {
	return IncrementSchedule{FinalStep: step}
}

// StepFor returns the required increment at the given displayed price.
func (s IncrementSchedule) StepFor(price decimal.Decimal) decimal.Decimal {
	rounded := price.Round(monetaryPrecision)
	for _, tier := range s.Tiers {
		if rounded.LessThan(tier.Ceiling) {
			return tier.Step
		}
	}
	return s.FinalStep
}

// IsValid reports whether the schedule has a usable positive fallback step
// and strictly ascending, positive tiers.
func (s IncrementSchedule) IsValid() bool {
	if !s.FinalStep.IsPositive() {
		return false
	}
	prev := decimal.Zero
	for _, tier := range s.Tiers {
		if !tier.Step.IsPositive() || !tier.Ceiling.GreaterThan(prev) {
			return false
		}
		prev = tier.Ceiling
	}
	return true
}
