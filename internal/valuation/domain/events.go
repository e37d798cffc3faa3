package domain

import "time"

const (
	ValuationCompletedEventType = "ValuationCompleted"
)

// ValuationCompletedEvent 估值完成事件，供下游报告生成等消费方订阅。
type ValuationCompletedEvent struct {
	ValuationID    string       `json:"valuation_id"`
	PlanName       string       `json:"plan_name"`
	Currency       string       `json:"currency"`
	Model          PricingModel `json:"model"`
	TotalFairValue float64      `json:"total_fair_value"`
	TrancheCount   int          `json:"tranche_count"`
	OccurredOn     time.Time    `json:"occurred_on"`
}
