package domain

import (
	"fmt"
	"math"
)

// StochasticPricer 外部随机模拟引擎（Monte Carlo）的接入点。
// 本核心只负责判定何时需要模拟并传递参数，不实现模拟本身。
type StochasticPricer interface {
	PriceTranche(plan Plan, trancheIndex int, market MarketParameters, strike, lifeYears float64) (float64, error)
}

// Aggregator 按批次分发定价并汇总加权公允价值。
// 各批次相互独立，无跨批次状态。
type Aggregator struct {
	// Stochastic 为 nil 时，Monte Carlo 批次返回 ErrStochasticEngineRequired
	Stochastic StochasticPricer
}

// ValuePlan 对计划的全部批次估值。模型来自显式覆盖或 SelectModel。
// 输入校验失败即拒绝，不做猜测性计算。
func (a Aggregator) ValuePlan(plan Plan) (*ValuationResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	model := plan.ModelOverride
	rationale := "model explicitly overridden by caller"
	if model == "" || model == PricingModelUndefined {
		model, rationale = SelectModel(plan.Features, plan.Tranches)
	}

	result := &ValuationResult{
		Model:     model,
		Rationale: rationale,
		Tranches:  make([]TrancheResult, len(plan.Tranches)),
	}
	for i := range plan.Tranches {
		tr, err := a.ValueTranche(plan, model, i)
		if err != nil {
			return nil, err
		}
		result.Tranches[i] = tr
		result.TotalFairValue += tr.WeightedFairValue
	}
	return result, nil
}

// ValueTranche 对单个批次估值。批次级参数（到期、行权价、市场参数）
// 覆盖计划级缺省值。导出以便应用层并行分发，结果与串行完全一致。
func (a Aggregator) ValueTranche(plan Plan, model PricingModel, i int) (TrancheResult, error) {
	t := plan.Tranches[i]

	market := plan.Market
	if t.Market != nil {
		market = *t.Market
	}
	strike := market.Strike
	if t.CustomStrike != nil {
		strike = *t.CustomStrike
	}
	life := plan.Features.OptionLifeYears
	if t.ExpiryYears != nil {
		life = *t.ExpiryYears
	}

	var unit float64
	switch model {
	case PricingModelBlackScholesGraded:
		unit = PriceCall(market.Spot, strike, life, market.RiskFreeRate, market.Volatility, market.DividendYield)

	case PricingModelBinomial:
		unit = PriceLattice(LatticeInput{
			Spot:                  market.Spot,
			Strike:                strike,
			RiskFreeRate:          market.RiskFreeRate,
			Volatility:            market.Volatility,
			DividendYield:         market.DividendYield,
			VestingYears:          t.VestingYears,
			TurnoverRate:          plan.Features.TurnoverRate,
			EarlyExerciseMultiple: plan.Features.EarlyExerciseMultiple,
			Hurdle:                plan.Hurdle,
			LifeYears:             life,
			StrikeGrowthRate:      plan.StrikeGrowthRate,
			LockupYears:           plan.Features.LockupYears,
			Style:                 plan.style(),
		})

	case PricingModelRSU:
		// 即期价格贴现 vesting 期间放弃的股息，锁定期下再扣 Chaffe 折价
		unit = market.Spot * math.Exp(-market.DividendYield*t.VestingYears)
		if plan.Features.LockupYears > 0 {
			unit -= LockupDiscount(market.Volatility, plan.Features.LockupYears, unit, market.DividendYield)
		}
		unit = math.Max(unit, 0)

	case PricingModelMonteCarlo:
		if a.Stochastic == nil {
			return TrancheResult{}, fmt.Errorf("tranche %d: %w", i, ErrStochasticEngineRequired)
		}
		mc, err := a.Stochastic.PriceTranche(plan, i, market, strike, life)
		if err != nil {
			return TrancheResult{}, fmt.Errorf("tranche %d: stochastic engine: %w", i, err)
		}
		unit = mc

	default:
		return TrancheResult{}, fmt.Errorf("tranche %d: %w: %q", i, ErrUnknownPricingModel, model)
	}

	return TrancheResult{
		Index:             i,
		Model:             model,
		Market:            market,
		VestingYears:      t.VestingYears,
		LifeYears:         life,
		Proportion:        t.Proportion,
		UnitFairValue:     unit,
		WeightedFairValue: unit * t.Proportion,
	}, nil
}
