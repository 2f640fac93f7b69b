package repository

import (
	"context"
	"errors"
	"time"

	"fundledger/internal/ledger"
	"fundledger/internal/model"

	"gorm.io/gorm"
)

type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) Create(ctx context.Context, tx *gorm.DB, coupon *model.Coupon) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(coupon).Error
}

func (r *CouponRepository) GetByID(ctx context.Context, id int64) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *CouponRepository) ListByUser(ctx context.Context, userID int64, status string) ([]*model.Coupon, error) {
	var coupons []*model.Coupon
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, status).
		Order("issued_at DESC").
		Find(&coupons).Error
	return coupons, err
}

// MarkUsed active → used 的一次性迁移
// 持有人不匹配按不存在处理，已用过的返回 ErrInvalidState
func (r *CouponRepository) MarkUsed(ctx context.Context, tx *gorm.DB, id, userID int64) error {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.Coupon{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, model.CouponStatusActive).
		Updates(map[string]interface{}{
			"status":  model.CouponStatusUsed,
			"used_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var coupon model.Coupon
		err := tx.WithContext(ctx).Where("id = ?", id).First(&coupon).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrNotFound
			}
			return err
		}
		if coupon.UserID != userID {
			return ledger.ErrNotFound
		}
		return ledger.ErrInvalidState
	}
	return nil
}
