package repository

import (
	"context"
	"errors"
	"time"

	"fundledger/internal/ledger"
	"fundledger/internal/model"

	"gorm.io/gorm"
)

type RewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

func (r *RewardRepository) Create(ctx context.Context, tx *gorm.DB, reward *model.PendingReward) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(reward).Error
}

func (r *RewardRepository) GetByID(ctx context.Context, id int64) (*model.PendingReward, error) {
	var reward model.PendingReward
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reward).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &reward, nil
}

func (r *RewardRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*model.PendingReward, error) {
	var rewards []*model.PendingReward
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&rewards).Error
	return rewards, err
}

func (r *RewardRepository) ListByOrderNo(ctx context.Context, orderNo string) ([]*model.PendingReward, error) {
	var rewards []*model.PendingReward
	err := r.db.WithContext(ctx).
		Where("order_no = ?", orderNo).
		Order("id ASC").
		Find(&rewards).Error
	return rewards, err
}

// RejectPendingByOrderNo 把订单下仍在 pending 的奖励整体驳回，返回驳回条数
// 退款时调用：已退款订单的奖励不允许再被审核通过
func (r *RewardRepository) RejectPendingByOrderNo(ctx context.Context, tx *gorm.DB, orderNo string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.PendingReward{}).
		Where("order_no = ? AND status = ?", orderNo, model.RewardStatusPending).
		Updates(map[string]interface{}{
			"status":       model.RewardStatusRejected,
			"processed_at": &now,
		})
	return result.RowsAffected, result.Error
}

// Resolve 奖励审核的一次性迁移
//
// 并发审核同一条奖励时，条件更新保证只有一个请求生效，
// 落败方拿到 ErrAlreadyResolved 而不是静默覆盖
func (r *RewardRepository) Resolve(ctx context.Context, tx *gorm.DB, id int64, toStatus string) error {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.PendingReward{}).
		Where("id = ? AND status = ?", id, model.RewardStatusPending).
		Updates(map[string]interface{}{
			"status":       toStatus,
			"processed_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.WithContext(ctx).
			Model(&model.PendingReward{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ledger.ErrNotFound
		}
		return ledger.ErrAlreadyResolved
	}
	return nil
}
