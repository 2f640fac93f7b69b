package repository

import (
	"context"
	"errors"
	"time"

	"fundledger/internal/ledger"
	"fundledger/internal/model"

	"gorm.io/gorm"
)

type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, tx *gorm.DB, refund *model.Refund) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(refund).Error
}

func (r *RefundRepository) GetByRefundNo(ctx context.Context, refundNo string) (*model.Refund, error) {
	var refund model.Refund
	err := r.db.WithContext(ctx).Where("refund_no = ?", refundNo).First(&refund).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &refund, nil
}

// Resolve 退款单终审迁移：pending → success/rejected 只允许一次
func (r *RefundRepository) Resolve(ctx context.Context, tx *gorm.DB, refundNo string, toStatus string) error {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.Refund{}).
		Where("refund_no = ? AND status = ?", refundNo, model.RefundPending).
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
			Model(&model.Refund{}).
			Where("refund_no = ?", refundNo).
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
