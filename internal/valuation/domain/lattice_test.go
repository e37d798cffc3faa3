package domain

import (
	"math"
	"testing"
)

// plainEuropean 返回不带雇佣特征的欧式格点输入，用于与 BSM 闭式解对照。
func plainEuropean(s, k, life, r, sigma, q float64) LatticeInput {
	return LatticeInput{
		Spot:          s,
		Strike:        k,
		RiskFreeRate:  r,
		Volatility:    sigma,
		DividendYield: q,
		LifeYears:     life,
		Style:         ExerciseStyleEuropean,
	}
}

func TestPriceLattice_ConvergesToBlackScholes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                 string
		s, k, life, r, sigma, q float64
	}{
		{"atm one year", 50, 50, 1, 0.05, 0.30, 0},
		{"itm two years with dividends", 100, 90, 2, 0.04, 0.25, 0.02},
		{"otm long dated", 80, 100, 5, 0.06, 0.35, 0.01},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			lattice := PriceLattice(plainEuropean(tc.s, tc.k, tc.life, tc.r, tc.sigma, tc.q))
			closed := PriceCall(tc.s, tc.k, tc.life, tc.r, tc.sigma, tc.q)

			if closed <= 0 {
				t.Fatalf("closed form gave %v, test setup broken", closed)
			}
			relDiff := math.Abs(lattice-closed) / closed
			if relDiff > 0.01 {
				t.Fatalf("lattice %v vs closed form %v: rel diff %.4f%% exceeds 1%%",
					lattice, closed, relDiff*100)
			}
		})
	}
}

func TestPriceLattice_AmericanAtLeastEuropean(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   LatticeInput
	}{
		{
			"with dividends",
			LatticeInput{Spot: 100, Strike: 95, RiskFreeRate: 0.05, Volatility: 0.3,
				DividendYield: 0.06, LifeYears: 3},
		},
		{
			"with turnover and vesting",
			LatticeInput{Spot: 50, Strike: 50, RiskFreeRate: 0.08, Volatility: 0.4,
				VestingYears: 1, TurnoverRate: 0.05, LifeYears: 5},
		},
		{
			"with lockup and indexed strike",
			LatticeInput{Spot: 40, Strike: 35, RiskFreeRate: 0.1, Volatility: 0.35,
				LockupYears: 1, StrikeGrowthRate: 0.04, LifeYears: 4},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			amer := tc.in
			amer.Style = ExerciseStyleAmerican
			euro := tc.in
			euro.Style = ExerciseStyleEuropean

			va := PriceLattice(amer)
			ve := PriceLattice(euro)
			if va < ve-1e-9 {
				t.Fatalf("american %v < european %v: early exercise premium must be non-negative", va, ve)
			}
		})
	}
}

func TestPriceLattice_LowVolatilityShortCircuit(t *testing.T) {
	t.Parallel()

	in := LatticeInput{
		Spot: 100, Strike: 80, RiskFreeRate: 0.05, Volatility: 1e-6,
		DividendYield: 0.01, LifeYears: 3, StrikeGrowthRate: 0.03,
		Style: ExerciseStyleAmerican,
	}
	got := PriceLattice(in)

	kAdj := in.Strike * math.Pow(1+in.StrikeGrowthRate, in.LifeYears)
	want := in.Spot*math.Exp(-in.DividendYield*in.LifeYears) - kAdj*math.Exp(-in.RiskFreeRate*in.LifeYears)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("low-vol short circuit = %v, want %v", got, want)
	}
}

func TestPriceLattice_ZeroLife(t *testing.T) {
	t.Parallel()

	got := PriceLattice(LatticeInput{Spot: 120, Strike: 100, Volatility: 0.3})
	if got != 20 {
		t.Fatalf("PriceLattice(T=0) = %v, want intrinsic 20", got)
	}
}

func TestPriceLattice_TurnoverReducesValue(t *testing.T) {
	t.Parallel()

	base := LatticeInput{
		Spot: 50, Strike: 50, RiskFreeRate: 0.05, Volatility: 0.3,
		VestingYears: 2, LifeYears: 5, Style: ExerciseStyleAmerican,
	}
	withTurnover := base
	withTurnover.TurnoverRate = 0.10

	v0 := PriceLattice(base)
	v1 := PriceLattice(withTurnover)
	if v1 >= v0 {
		t.Fatalf("turnover should reduce value: %v (w=0.10) >= %v (w=0)", v1, v0)
	}
}

func TestPriceLattice_HurdleAboveRangeZeroesValue(t *testing.T) {
	t.Parallel()

	in := LatticeInput{
		Spot: 50, Strike: 50, RiskFreeRate: 0.05, Volatility: 0.2,
		LifeYears: 1, Hurdle: 1e9, Style: ExerciseStyleAmerican,
	}
	if got := PriceLattice(in); got != 0 {
		t.Fatalf("unreachable hurdle should zero the option, got %v", got)
	}
}

func TestPriceLattice_ForcedExerciseNeverAddsValue(t *testing.T) {
	t.Parallel()

	base := LatticeInput{
		Spot: 100, Strike: 100, RiskFreeRate: 0.06, Volatility: 0.45,
		LifeYears: 6, Style: ExerciseStyleAmerican,
	}
	forced := base
	forced.EarlyExerciseMultiple = 1.5

	vFree := PriceLattice(base)
	vForced := PriceLattice(forced)
	if vForced > vFree+1e-9 {
		t.Fatalf("forced early exercise added value: %v > %v", vForced, vFree)
	}

	// M < 1 视为禁用，不得触发次优行权
	disabled := base
	disabled.EarlyExerciseMultiple = 0.5
	vDisabled := PriceLattice(disabled)
	if math.Abs(vDisabled-vFree) > 1e-12 {
		t.Fatalf("multiple below 1 must be ignored: %v != %v", vDisabled, vFree)
	}
}

func TestPriceLattice_StrikeGrowthReducesValue(t *testing.T) {
	t.Parallel()

	base := LatticeInput{
		Spot: 50, Strike: 50, RiskFreeRate: 0.1, Volatility: 0.3,
		LifeYears: 5, Style: ExerciseStyleEuropean,
	}
	indexed := base
	indexed.StrikeGrowthRate = 0.06

	v0 := PriceLattice(base)
	v1 := PriceLattice(indexed)
	if v1 >= v0 {
		t.Fatalf("indexed strike should reduce call value: %v >= %v", v1, v0)
	}
}

func TestPriceLattice_PreVestingBlocksExercise(t *testing.T) {
	t.Parallel()

	// vesting 等于存续期：美式即使深度实值也只能持有到期，
	// 其价值不得高于同参数欧式（行权分支被完全关闭）。
	in := LatticeInput{
		Spot: 200, Strike: 100, RiskFreeRate: 0.05, Volatility: 0.3,
		DividendYield: 0.08, VestingYears: 2, LifeYears: 2,
		Style: ExerciseStyleAmerican,
	}
	euro := in
	euro.VestingYears = 0
	euro.Style = ExerciseStyleEuropean

	va := PriceLattice(in)
	ve := PriceLattice(euro)
	if va > ve+1e-9 {
		t.Fatalf("fully vested-at-expiry american %v should not exceed european %v", va, ve)
	}
}
