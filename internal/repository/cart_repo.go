package repository

import (
	"context"

	"fundledger/internal/ledger"
	"fundledger/internal/model"

	"gorm.io/gorm"
)

type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

// ListSelected 用户当前选中、尚未下单的购物车行
func (r *CartRepository) ListSelected(ctx context.Context, tx *gorm.DB, userID int64) ([]*model.CartLine, error) {
	if tx == nil {
		tx = r.db
	}
	var lines []*model.CartLine
	err := tx.WithContext(ctx).
		Where("user_id = ? AND selected = ? AND consumed = ?", userID, true, false).
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

// MarkConsumed 下单成功后把选中的行标记为已消费
// 任何一行已被并发订单消费则整体失败，让下单事务回滚
func (r *CartRepository) MarkConsumed(ctx context.Context, tx *gorm.DB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.CartLine{}).
		Where("id IN ? AND consumed = ?", ids, false).
		Update("consumed", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(ids)) {
		return ledger.ErrConcurrentModification
	}
	return nil
}
