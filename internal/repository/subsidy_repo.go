package repository

import (
	"context"

	"fundledger/internal/model"

	"gorm.io/gorm"
)

type SubsidyRepository struct {
	db *gorm.DB
}

func NewSubsidyRepository(db *gorm.DB) *SubsidyRepository {
	return &SubsidyRepository{db: db}
}

func (r *SubsidyRepository) Create(ctx context.Context, tx *gorm.DB, record *model.SubsidyRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

func (r *SubsidyRepository) ListByBatch(ctx context.Context, batchID string) ([]*model.SubsidyRecord, error) {
	var records []*model.SubsidyRecord
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("user_id ASC").
		Find(&records).Error
	return records, err
}
