package domain

import (
	"math"
	"testing"
)

func TestWeightedAverageVesting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		tranches []Tranche
		want     float64
	}{
		{"no tranches defaults", nil, 3.0},
		{"zero proportions", []Tranche{{VestingYears: 2, Proportion: 0}}, 0},
		{"single tranche", []Tranche{{VestingYears: 2, Proportion: 1}}, 2},
		{
			"graded vesting",
			[]Tranche{
				{VestingYears: 1, Proportion: 0.25},
				{VestingYears: 2, Proportion: 0.25},
				{VestingYears: 3, Proportion: 0.5},
			},
			2.25,
		},
		{
			"unnormalized proportions",
			[]Tranche{
				{VestingYears: 1, Proportion: 1},
				{VestingYears: 3, Proportion: 1},
			},
			2,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := WeightedAverageVesting(tc.tranches)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("WeightedAverageVesting = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSelectModel(t *testing.T) {
	t.Parallel()

	oneYear := []Tranche{{VestingYears: 1, Proportion: 1}}

	cases := []struct {
		name     string
		features PlanFeatures
		tranches []Tranche
		want     PricingModel
	}{
		{
			// 市场条件优先于其它一切标志
			"market condition wins over everything",
			PlanFeatures{HasMarketCondition: true, StrikeIsZero: true,
				HasStrikeCorrection: true, LockupYears: 2, OptionLifeYears: 10},
			oneYear,
			PricingModelMonteCarlo,
		},
		{
			"zero strike without market condition is rsu",
			PlanFeatures{StrikeIsZero: true, LockupYears: 1, OptionLifeYears: 10},
			oneYear,
			PricingModelRSU,
		},
		{
			"strike correction needs lattice",
			PlanFeatures{HasStrikeCorrection: true, OptionLifeYears: 2},
			oneYear,
			PricingModelBinomial,
		},
		{
			"lockup needs lattice",
			PlanFeatures{LockupYears: 0.5, OptionLifeYears: 2},
			oneYear,
			PricingModelBinomial,
		},
		{
			"long exercise window needs lattice",
			PlanFeatures{OptionLifeYears: 10},
			oneYear, // gap = 9 > 2
			PricingModelBinomial,
		},
		{
			"plain graded plan defaults to black-scholes",
			PlanFeatures{OptionLifeYears: 5},
			[]Tranche{{VestingYears: 4, Proportion: 1}}, // gap = 1
			PricingModelBlackScholesGraded,
		},
		{
			// 无批次数据：平均 vesting 取缺省 3 年，gap 恰好在阈值上不触发
			"no tranche data falls through to default",
			PlanFeatures{OptionLifeYears: 5},
			nil,
			PricingModelBlackScholesGraded,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			model, rationale := SelectModel(tc.features, tc.tranches)
			if model != tc.want {
				t.Fatalf("SelectModel = %s, want %s", model, tc.want)
			}
			if rationale == "" {
				t.Fatal("rationale must not be empty")
			}
		})
	}
}
