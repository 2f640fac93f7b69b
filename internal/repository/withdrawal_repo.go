package repository

import (
	"context"
	"errors"
	"time"

	"fundledger/internal/ledger"
	"fundledger/internal/model"

	"gorm.io/gorm"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, withdrawal *model.Withdrawal) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(withdrawal).Error
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*model.Withdrawal, error) {
	var withdrawal model.Withdrawal
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&withdrawal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &withdrawal, nil
}

func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*model.Withdrawal, error) {
	var withdrawals []*model.Withdrawal
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&withdrawals).Error
	return withdrawals, err
}

// Resolve 提现审核的一次性迁移，语义同 RewardRepository.Resolve
func (r *WithdrawalRepository) Resolve(ctx context.Context, tx *gorm.DB, id int64, toStatus, remark string) error {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.Withdrawal{}).
		Where("id = ? AND status = ?", id, model.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":       toStatus,
			"audit_remark": remark,
			"processed_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.WithContext(ctx).
			Model(&model.Withdrawal{}).
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
