package repository

import (
	"context"

	"fundledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FlowRepository struct {
	db *gorm.DB
}

func NewFlowRepository(db *gorm.DB) *FlowRepository {
	return &FlowRepository{db: db}
}

// Create 追加一条流水。流水只插入，任何路径都不更新、不删除
func (r *FlowRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.FlowEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

// ListByCause 按因果取全部流水，冲正时逐条取反
func (r *FlowRepository) ListByCause(ctx context.Context, tx *gorm.DB, causeID string) ([]*model.FlowEntry, error) {
	if tx == nil {
		tx = r.db
	}
	var entries []*model.FlowEntry
	err := tx.WithContext(ctx).
		Where("cause_id = ?", causeID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *FlowRepository) ListByAccount(ctx context.Context, accountType string, limit int) ([]*model.FlowEntry, error) {
	var entries []*model.FlowEntry
	err := r.db.WithContext(ctx).
		Where("account_type = ?", accountType).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *FlowRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.FlowEntry, error) {
	var entries []*model.FlowEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *FlowRepository) List(ctx context.Context, limit int) ([]*model.FlowEntry, error) {
	var entries []*model.FlowEntry
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// MarkReversed 写入冲正标记
// 返回 false 表示该因果已经冲正过（唯一索引冲突），调用方按无操作处理
func (r *FlowRepository) MarkReversed(ctx context.Context, tx *gorm.DB, causeID string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	marker := &model.FlowReversal{CauseID: causeID}
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
