package domain

import "context"

// ValuationRepository 估值记录仓储
type ValuationRepository interface {
	Save(ctx context.Context, rec *ValuationRecord) error
	GetByValuationID(ctx context.Context, valuationID string) (*ValuationRecord, error)
	ListByPlan(ctx context.Context, planName string, limit int) ([]*ValuationRecord, error)
}
