package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/ifrs2tools/equityval/internal/valuation/domain"
	"github.com/ifrs2tools/equityval/pkg/db"
)

// ValuationRepo 估值记录的 MySQL 仓储实现
type ValuationRepo struct {
	db *db.DB
}

// NewValuationRepo 创建估值仓储
func NewValuationRepo(database *db.DB) *ValuationRepo {
	return &ValuationRepo{db: database}
}

// Save 在同一事务中写入估值主记录与批次明细
func (r *ValuationRepo) Save(ctx context.Context, rec *domain.ValuationRecord) error {
	model := toValuationModel(rec)
	tranches := toTrancheModels(rec)

	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(tranches) == 0 {
			return nil
		}
		return tx.CreateInBatches(tranches, 100).Error
	})
}

// GetByValuationID 按估值 ID 查询，含批次明细
func (r *ValuationRepo) GetByValuationID(ctx context.Context, valuationID string) (*domain.ValuationRecord, error) {
	var model ValuationModel
	if err := r.db.WithContext(ctx).
		Where("valuation_id = ?", valuationID).
		First(&model).Error; err != nil {
		return nil, err
	}

	var tranches []TrancheModel
	if err := r.db.WithContext(ctx).
		Where("valuation_id = ?", valuationID).
		Order("tranche_index ASC").
		Find(&tranches).Error; err != nil {
		return nil, err
	}

	return toValuationRecord(&model, tranches), nil
}

// ListByPlan 按计划名查询最近的估值记录，按创建时间倒序
func (r *ValuationRepo) ListByPlan(ctx context.Context, planName string, limit int) ([]*domain.ValuationRecord, error) {
	var models []ValuationModel
	if err := r.db.WithContext(ctx).
		Where("plan_name = ?", planName).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}

	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ValuationID
	}

	var tranches []TrancheModel
	if err := r.db.WithContext(ctx).
		Where("valuation_id IN ?", ids).
		Order("tranche_index ASC").
		Find(&tranches).Error; err != nil {
		return nil, err
	}
	byValuation := make(map[string][]TrancheModel, len(models))
	for _, tm := range tranches {
		byValuation[tm.ValuationID] = append(byValuation[tm.ValuationID], tm)
	}

	recs := make([]*domain.ValuationRecord, len(models))
	for i := range models {
		recs[i] = toValuationRecord(&models[i], byValuation[models[i].ValuationID])
	}
	return recs, nil
}
