package domain

import (
	"errors"
	"fmt"
)

// 数值退化判断阈值。小于该值的时间/波动率/价格按边界分支处理，
// 保证所有定价函数返回有限且非负的结果。
const epsilon = 1e-9

var (
	ErrStochasticEngineRequired = errors.New("stochastic engine required for monte carlo pricing")
	ErrUnknownPricingModel      = errors.New("unknown pricing model")
)

// PricingModel 定价模型（封闭枚举，聚合器中做穷尽 switch）
type PricingModel string

const (
	PricingModelMonteCarlo         PricingModel = "MONTE_CARLO"
	PricingModelBinomial           PricingModel = "BINOMIAL"
	PricingModelBlackScholesGraded PricingModel = "BLACK_SCHOLES_GRADED"
	PricingModelRSU                PricingModel = "RSU"
	PricingModelUndefined          PricingModel = "UNDEFINED"
)

// ExerciseStyle 行权方式
type ExerciseStyle string

const (
	ExerciseStyleAmerican ExerciseStyle = "AMERICAN"
	ExerciseStyleEuropean ExerciseStyle = "EUROPEAN"
)

// MarketParameters 市场参数。利率与股息率均为连续复利，
// 有效年化报价需先经 ContinuousRate 转换（见应用层）。
type MarketParameters struct {
	Spot          float64 `json:"spot"`
	Strike        float64 `json:"strike"`
	Volatility    float64 `json:"volatility"`
	RiskFreeRate  float64 `json:"risk_free_rate"`
	DividendYield float64 `json:"dividend_yield"`
}

// Tranche 单个 vesting 批次。Proportion 为该批次占授予总量的权重（0~1）。
// ExpiryYears 为空时使用计划层面的期权存续期；CustomStrike 为空时使用计划行权价。
type Tranche struct {
	VestingYears float64           `json:"vesting_years"`
	Proportion   float64           `json:"proportion"`
	ExpiryYears  *float64          `json:"expiry_years,omitempty"`
	CustomStrike *float64          `json:"custom_strike,omitempty"`
	Market       *MarketParameters `json:"market,omitempty"`
}

// PlanFeatures 计划特征标志，驱动模型选择与格点引擎的行为开关。
type PlanFeatures struct {
	// 是否存在市场条件（TSR、目标股价等路径依赖触发器）
	HasMarketCondition bool `json:"has_market_condition"`
	// 行权价是否按指数修正（通胀挂钩）
	HasStrikeCorrection bool `json:"has_strike_correction"`
	// 行权价为零或象征性（RSU / Matching Shares）
	StrikeIsZero bool `json:"strike_is_zero"`
	// 年化离职率（指数风险率，0~1）
	TurnoverRate float64 `json:"turnover_rate"`
	// 强制行权倍数 M，小于 1 视为禁用
	EarlyExerciseMultiple float64 `json:"early_exercise_multiple"`
	// 锁定期（年）
	LockupYears float64 `json:"lockup_years"`
	// 期权存续期（年），批次未指定到期时的缺省值
	OptionLifeYears float64 `json:"option_life_years"`
}

// Plan 一次估值调用的完整输入。引擎不修改输入，结果全部新建。
type Plan struct {
	Features PlanFeatures     `json:"features"`
	Market   MarketParameters `json:"market"`
	Tranches []Tranche        `json:"tranches"`

	// 行权价年度指数化增长率（如 IPCA/IGP-M 通胀修正）
	StrikeGrowthRate float64 `json:"strike_growth_rate"`
	// 业绩障碍价，节点股价低于该值时业绩条件未达成
	Hurdle float64 `json:"hurdle"`
	// 行权方式，缺省按美式处理
	Style ExerciseStyle `json:"exercise_style"`

	// 显式模型覆盖。为空或 UNDEFINED 时由 SelectModel 决定。
	ModelOverride PricingModel `json:"model_override,omitempty"`
}

// TrancheResult 单批次估值结果
type TrancheResult struct {
	Index             int              `json:"index"`
	Model             PricingModel     `json:"model"`
	Market            MarketParameters `json:"market"`
	VestingYears      float64          `json:"vesting_years"`
	LifeYears         float64          `json:"life_years"`
	Proportion        float64          `json:"proportion"`
	UnitFairValue     float64          `json:"unit_fair_value"`
	WeightedFairValue float64          `json:"weighted_fair_value"`
}

// ValuationResult 计划级估值结果。
// 不变式：WeightedFairValue = UnitFairValue × Proportion，Total = Σ Weighted。
type ValuationResult struct {
	Model          PricingModel    `json:"model"`
	Rationale      string          `json:"rationale"`
	Tranches       []TrancheResult `json:"tranches"`
	TotalFairValue float64         `json:"total_fair_value"`
}

// ValidationError 输入校验错误，定位到具体批次与字段。
// TrancheIndex 为 -1 表示计划层面的字段。
type ValidationError struct {
	TrancheIndex int
	Field        string
	Reason       string
}

func (e *ValidationError) Error() string {
	if e.TrancheIndex < 0 {
		return fmt.Sprintf("invalid plan input: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid plan input: tranche %d: %s: %s", e.TrancheIndex, e.Field, e.Reason)
}

func planErr(field, reason string) *ValidationError {
	return &ValidationError{TrancheIndex: -1, Field: field, Reason: reason}
}

func trancheErr(i int, field, reason string) *ValidationError {
	return &ValidationError{TrancheIndex: i, Field: field, Reason: reason}
}

// Validate 拒绝无效配置（负时间、负波动率、权重越界等）。
// 数值退化（零时间、零波动率）不在此处拦截，由各定价函数的边界分支就地处理。
func (p *Plan) Validate() error {
	if err := validateMarket(-1, p.Market); err != nil {
		return err
	}
	if p.Features.TurnoverRate < 0 || p.Features.TurnoverRate > 1 {
		return planErr("turnover_rate", "must be within [0, 1]")
	}
	if m := p.Features.EarlyExerciseMultiple; m < 0 || (m > 0 && m < 1) {
		return planErr("early_exercise_multiple", "must be 0 (disabled) or at least 1")
	}
	if p.Features.LockupYears < 0 {
		return planErr("lockup_years", "must be non-negative")
	}
	if p.Features.OptionLifeYears < 0 {
		return planErr("option_life_years", "must be non-negative")
	}
	if p.Hurdle < 0 {
		return planErr("hurdle", "must be non-negative")
	}
	if p.StrikeGrowthRate <= -1 {
		return planErr("strike_growth_rate", "must be greater than -1")
	}
	if p.Style != "" && p.Style != ExerciseStyleAmerican && p.Style != ExerciseStyleEuropean {
		return planErr("exercise_style", fmt.Sprintf("unknown style %q", p.Style))
	}
	for i, t := range p.Tranches {
		if t.VestingYears < 0 {
			return trancheErr(i, "vesting_years", "must be non-negative")
		}
		if t.Proportion < 0 || t.Proportion > 1 {
			return trancheErr(i, "proportion", "must be within [0, 1]")
		}
		if t.ExpiryYears != nil && *t.ExpiryYears < t.VestingYears {
			return trancheErr(i, "expiry_years", "must not precede vesting_years")
		}
		if t.CustomStrike != nil && *t.CustomStrike < 0 {
			return trancheErr(i, "custom_strike", "must be non-negative")
		}
		if t.Market != nil {
			if err := validateMarket(i, *t.Market); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateMarket(tranche int, m MarketParameters) error {
	mkErr := func(field, reason string) *ValidationError {
		return &ValidationError{TrancheIndex: tranche, Field: field, Reason: reason}
	}
	if m.Spot < 0 {
		return mkErr("spot", "must be non-negative")
	}
	if m.Strike < 0 {
		return mkErr("strike", "must be non-negative")
	}
	if m.Volatility < 0 {
		return mkErr("volatility", "must be non-negative")
	}
	return nil
}

// style 返回批次定价使用的行权方式，缺省美式（员工期权惯例）。
func (p *Plan) style() ExerciseStyle {
	if p.Style == "" {
		return ExerciseStyleAmerican
	}
	return p.Style
}
