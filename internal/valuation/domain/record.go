package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuationRecord 估值记录实体。核心引擎以 float64 计算，
// 对外呈报与落库的货币金额统一转为 decimal。
type ValuationRecord struct {
	ID          uint      `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ValuationID string    `json:"valuation_id"`
	PlanName    string    `json:"plan_name"`
	Currency    string    `json:"currency"`

	Model          PricingModel    `json:"model"`
	Rationale      string          `json:"rationale"`
	TotalFairValue decimal.Decimal `json:"total_fair_value"`

	Tranches []TrancheRecord `json:"tranches"`
}

// TrancheRecord 批次级估值记录
type TrancheRecord struct {
	TrancheIndex      int             `json:"tranche_index"`
	VestingYears      float64         `json:"vesting_years"`
	LifeYears         float64         `json:"life_years"`
	Proportion        float64         `json:"proportion"`
	UnitFairValue     decimal.Decimal `json:"unit_fair_value"`
	WeightedFairValue decimal.Decimal `json:"weighted_fair_value"`
}

// NewValuationRecord 由引擎结果构建持久化实体
func NewValuationRecord(valuationID, planName, currency string, result *ValuationResult) *ValuationRecord {
	rec := &ValuationRecord{
		ValuationID:    valuationID,
		PlanName:       planName,
		Currency:       currency,
		Model:          result.Model,
		Rationale:      result.Rationale,
		TotalFairValue: decimal.NewFromFloat(result.TotalFairValue),
		Tranches:       make([]TrancheRecord, len(result.Tranches)),
	}
	for i, tr := range result.Tranches {
		rec.Tranches[i] = TrancheRecord{
			TrancheIndex:      tr.Index,
			VestingYears:      tr.VestingYears,
			LifeYears:         tr.LifeYears,
			Proportion:        tr.Proportion,
			UnitFairValue:     decimal.NewFromFloat(tr.UnitFairValue),
			WeightedFairValue: decimal.NewFromFloat(tr.WeightedFairValue),
		}
	}
	return rec
}
