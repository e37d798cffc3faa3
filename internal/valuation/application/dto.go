package application

import (
	"time"

	"github.com/ifrs2tools/equityval/internal/valuation/domain"
)

// 缺省合约参数：期权存续期 5 年，强制行权倍数 2 倍行权价
const (
	defaultOptionLifeYears       = 5.0
	defaultEarlyExerciseMultiple = 2.0
)

// MarketParamsDTO 市场参数。利率按配置的报价惯例解释（continuous 或 effective）。
type MarketParamsDTO struct {
	Spot          float64 `json:"spot" binding:"required"`
	Strike        float64 `json:"strike"`
	Volatility    float64 `json:"volatility"`
	RiskFreeRate  float64 `json:"risk_free_rate"`
	DividendYield float64 `json:"dividend_yield"`
}

// TrancheDTO 单个 vesting 批次
type TrancheDTO struct {
	VestingYears float64          `json:"vesting_years"`
	Proportion   float64          `json:"proportion" binding:"required"`
	ExpiryYears  *float64         `json:"expiry_years,omitempty"`
	CustomStrike *float64         `json:"custom_strike,omitempty"`
	Market       *MarketParamsDTO `json:"market,omitempty"`
}

// FeaturesDTO 计划特征。缺省存续期 5 年、强制行权倍数 2。
type FeaturesDTO struct {
	HasMarketCondition    bool     `json:"has_market_condition"`
	HasStrikeCorrection   bool     `json:"has_strike_correction"`
	StrikeIsZero          bool     `json:"strike_is_zero"`
	TurnoverRate          float64  `json:"turnover_rate"`
	EarlyExerciseMultiple *float64 `json:"early_exercise_multiple,omitempty"`
	LockupYears           float64  `json:"lockup_years"`
	OptionLifeYears       *float64 `json:"option_life_years,omitempty"`
}

// ValuationRequest 计划估值请求
type ValuationRequest struct {
	PlanName string `json:"plan_name" binding:"required"`
	Currency string `json:"currency"`

	Features FeaturesDTO     `json:"features"`
	Market   MarketParamsDTO `json:"market" binding:"required"`
	Tranches []TrancheDTO    `json:"tranches" binding:"required,min=1"`

	StrikeGrowthRate float64 `json:"strike_growth_rate"`
	Hurdle           float64 `json:"hurdle"`
	ExerciseStyle    string  `json:"exercise_style"`
	ModelOverride    string  `json:"model_override"`
}

// toPlan 将请求映射为领域输入并补全缺省值
func (r *ValuationRequest) toPlan() domain.Plan {
	features := domain.PlanFeatures{
		HasMarketCondition:    r.Features.HasMarketCondition,
		HasStrikeCorrection:   r.Features.HasStrikeCorrection,
		StrikeIsZero:          r.Features.StrikeIsZero,
		TurnoverRate:          r.Features.TurnoverRate,
		EarlyExerciseMultiple: defaultEarlyExerciseMultiple,
		LockupYears:           r.Features.LockupYears,
		OptionLifeYears:       defaultOptionLifeYears,
	}
	if r.Features.EarlyExerciseMultiple != nil {
		features.EarlyExerciseMultiple = *r.Features.EarlyExerciseMultiple
	}
	if r.Features.OptionLifeYears != nil {
		features.OptionLifeYears = *r.Features.OptionLifeYears
	}

	tranches := make([]domain.Tranche, len(r.Tranches))
	for i, t := range r.Tranches {
		tranches[i] = domain.Tranche{
			VestingYears: t.VestingYears,
			Proportion:   t.Proportion,
			ExpiryYears:  t.ExpiryYears,
			CustomStrike: t.CustomStrike,
		}
		if t.Market != nil {
			m := toMarket(*t.Market)
			tranches[i].Market = &m
		}
	}

	return domain.Plan{
		Features:         features,
		Market:           toMarket(r.Market),
		Tranches:         tranches,
		StrikeGrowthRate: r.StrikeGrowthRate,
		Hurdle:           r.Hurdle,
		Style:            domain.ExerciseStyle(r.ExerciseStyle),
		ModelOverride:    domain.PricingModel(r.ModelOverride),
	}
}

func toMarket(m MarketParamsDTO) domain.MarketParameters {
	return domain.MarketParameters{
		Spot:          m.Spot,
		Strike:        m.Strike,
		Volatility:    m.Volatility,
		RiskFreeRate:  m.RiskFreeRate,
		DividendYield: m.DividendYield,
	}
}

// TrancheValuationDTO 批次级估值结果。货币金额以十进制字符串呈报。
type TrancheValuationDTO struct {
	TrancheIndex      int     `json:"tranche_index"`
	VestingYears      float64 `json:"vesting_years"`
	LifeYears         float64 `json:"life_years"`
	Proportion        float64 `json:"proportion"`
	UnitFairValue     string  `json:"unit_fair_value"`
	WeightedFairValue string  `json:"weighted_fair_value"`
}

// ValuationDTO 计划级估值结果
type ValuationDTO struct {
	ValuationID    string                `json:"valuation_id"`
	PlanName       string                `json:"plan_name"`
	Currency       string                `json:"currency"`
	Model          string                `json:"model"`
	Rationale      string                `json:"rationale"`
	TotalFairValue string                `json:"total_fair_value"`
	Tranches       []TrancheValuationDTO `json:"tranches"`
	CreatedAt      time.Time             `json:"created_at"`
}

func recordToDTO(rec *domain.ValuationRecord) *ValuationDTO {
	dto := &ValuationDTO{
		ValuationID:    rec.ValuationID,
		PlanName:       rec.PlanName,
		Currency:       rec.Currency,
		Model:          string(rec.Model),
		Rationale:      rec.Rationale,
		TotalFairValue: rec.TotalFairValue.String(),
		Tranches:       make([]TrancheValuationDTO, len(rec.Tranches)),
		CreatedAt:      rec.CreatedAt,
	}
	for i, tr := range rec.Tranches {
		dto.Tranches[i] = TrancheValuationDTO{
			TrancheIndex:      tr.TrancheIndex,
			VestingYears:      tr.VestingYears,
			LifeYears:         tr.LifeYears,
			Proportion:        tr.Proportion,
			UnitFairValue:     tr.UnitFairValue.String(),
			WeightedFairValue: tr.WeightedFairValue.String(),
		}
	}
	return dto
}

// RecommendationRequest 模型推荐请求（不触发定价）
type RecommendationRequest struct {
	Features FeaturesDTO  `json:"features"`
	Tranches []TrancheDTO `json:"tranches"`
}

// RecommendationDTO 模型推荐结果
type RecommendationDTO struct {
	Model                  string  `json:"model"`
	Rationale              string  `json:"rationale"`
	WeightedAverageVesting float64 `json:"weighted_average_vesting_years"`
}
