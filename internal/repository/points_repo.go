package repository

import (
	"context"

	"fundledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PointsRepository struct {
	db *gorm.DB
}

func NewPointsRepository(db *gorm.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// Create 追加一条积分流水，与资金流水同一条只增不改的红线
func (r *PointsRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.PointsEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

func (r *PointsRepository) ListByCause(ctx context.Context, tx *gorm.DB, causeID string) ([]*model.PointsEntry, error) {
	if tx == nil {
		tx = r.db
	}
	var entries []*model.PointsEntry
	err := tx.WithContext(ctx).
		Where("cause_id = ?", causeID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *PointsRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.PointsEntry, error) {
	var entries []*model.PointsEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// MarkReversed 积分冲正标记，语义同 FlowRepository.MarkReversed
func (r *PointsRepository) MarkReversed(ctx context.Context, tx *gorm.DB, causeID string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	marker := &model.PointsReversal{CauseID: causeID}
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cause_id"}},
			DoNothing: true,
		}).
		Create(marker)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
