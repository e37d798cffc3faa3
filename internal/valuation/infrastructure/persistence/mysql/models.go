package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ifrs2tools/equityval/internal/valuation/domain"
)

// ValuationModel MySQL 估值主表映射。货币金额以 decimal 字符串落库。
type ValuationModel struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt      time.Time `gorm:"column:created_at;index"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
	ValuationID    string    `gorm:"column:valuation_id;type:varchar(36);uniqueIndex;not null"`
	PlanName       string    `gorm:"column:plan_name;type:varchar(128);index;not null"`
	Currency       string    `gorm:"column:currency;type:varchar(8);not null"`
	Model          string    `gorm:"column:model;type:varchar(32);not null"`
	Rationale      string    `gorm:"column:rationale;type:varchar(512)"`
	TotalFairValue string    `gorm:"column:total_fair_value;type:decimal(32,18);not null"`
}

func (ValuationModel) TableName() string { return "valuations" }

// TrancheModel MySQL 批次结果表映射
type TrancheModel struct {
	ID                uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
	ValuationID       string    `gorm:"column:valuation_id;type:varchar(36);index;not null"`
	TrancheIndex      int       `gorm:"column:tranche_index;not null"`
	VestingYears      float64   `gorm:"column:vesting_years;type:decimal(10,6)"`
	LifeYears         float64   `gorm:"column:life_years;type:decimal(10,6)"`
	Proportion        float64   `gorm:"column:proportion;type:decimal(10,6)"`
	UnitFairValue     string    `gorm:"column:unit_fair_value;type:decimal(32,18);not null"`
	WeightedFairValue string    `gorm:"column:weighted_fair_value;type:decimal(32,18);not null"`
}

func (TrancheModel) TableName() string { return "valuation_tranches" }

// AutoMigrate 迁移估值相关表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ValuationModel{}, &TrancheModel{})
}

// mapping helpers

func toValuationModel(rec *domain.ValuationRecord) *ValuationModel {
	if rec == nil {
		return nil
	}
	return &ValuationModel{
		ID:             rec.ID,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		ValuationID:    rec.ValuationID,
		PlanName:       rec.PlanName,
		Currency:       rec.Currency,
		Model:          string(rec.Model),
		Rationale:      rec.Rationale,
		TotalFairValue: rec.TotalFairValue.String(),
	}
}

func toTrancheModels(rec *domain.ValuationRecord) []TrancheModel {
	models := make([]TrancheModel, len(rec.Tranches))
	for i, tr := range rec.Tranches {
		models[i] = TrancheModel{
			ValuationID:       rec.ValuationID,
			TrancheIndex:      tr.TrancheIndex,
			VestingYears:      tr.VestingYears,
			LifeYears:         tr.LifeYears,
			Proportion:        tr.Proportion,
			UnitFairValue:     tr.UnitFairValue.String(),
			WeightedFairValue: tr.WeightedFairValue.String(),
		}
	}
	return models
}

func toValuationRecord(m *ValuationModel, tranches []TrancheModel) *domain.ValuationRecord {
	if m == nil {
		return nil
	}
	total, _ := decimal.NewFromString(m.TotalFairValue)

	rec := &domain.ValuationRecord{
		ID:             m.ID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		ValuationID:    m.ValuationID,
		PlanName:       m.PlanName,
		Currency:       m.Currency,
		Model:          domain.PricingModel(m.Model),
		Rationale:      m.Rationale,
		TotalFairValue: total,
		Tranches:       make([]domain.TrancheRecord, len(tranches)),
	}
	for i, tm := range tranches {
		unit, _ := decimal.NewFromString(tm.UnitFairValue)
		weighted, _ := decimal.NewFromString(tm.WeightedFairValue)
		rec.Tranches[i] = domain.TrancheRecord{
			TrancheIndex:      tm.TrancheIndex,
			VestingYears:      tm.VestingYears,
			LifeYears:         tm.LifeYears,
			Proportion:        tm.Proportion,
			UnitFairValue:     unit,
			WeightedFairValue: weighted,
		}
	}
	return rec
}
