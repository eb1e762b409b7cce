package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestDefaultIncrementSchedule_StepBands(t *testing.T) {
	s := DefaultIncrementSchedule()

	cases := []struct {
		price int64
		step  string
	}{
		{0, "25"},
		{999, "25"},
		{1_000, "100"},
		{9_999, "100"},
		{10_000, "250"},
		{24_999, "250"},
		{25_000, "500"},
		{99_999, "500"},
		{100_000, "1000"},
		{500_000, "1000"},
	}
	for _, tc := range cases {
		step := s.StepFor(decimal.NewFromInt(tc.price))
		check.Equal(t, tc.step, step.String())
	}
}

func TestFlatIncrementSchedule_SingleStep(t *testing.T) {
	s := FlatIncrementSchedule(decimal.NewFromInt(500))

	check.Equal(t, "500", s.StepFor(decimal.NewFromInt(100)).String())
	check.Equal(t, "500", s.StepFor(decimal.NewFromInt(1_000_000)).String())
	check.True(t, s.IsValid())
}

func TestIncrementSchedule_IsValid(t *testing.T) {
	check.True(t, DefaultIncrementSchedule().IsValid())

	// Zero fallback step.
	check.False(t, IncrementSchedule{}.IsValid())

	// Non-ascending ceilings.
	bad := IncrementSchedule{
		Tiers: []IncrementTier{
			{Ceiling: decimal.NewFromInt(1_000), Step: decimal.NewFromInt(25)},
			{Ceiling: decimal.NewFromInt(1_000), Step: decimal.NewFromInt(100)},
		},
		FinalStep: decimal.NewFromInt(500),
	}
	check.False(t, bad.IsValid())

	// Zero tier step.
	bad = IncrementSchedule{
		Tiers:     []IncrementTier{{Ceiling: decimal.NewFromInt(1_000), Step: decimal.Zero}},
		FinalStep: decimal.NewFromInt(500),
	}
	check.False(t, bad.IsValid())
}
