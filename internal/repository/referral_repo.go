package repository

import (
	"context"
	"errors"

	"fundledger/internal/ledger"
	"fundledger/internal/model"

	"gorm.io/gorm"
)

var ErrReferrerExists = errors.New("用户已存在推荐人，无法重复设置")

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// GetReferrer 查用户的直接推荐人，没有推荐人返回 (nil, nil)
func (r *ReferralRepository) GetReferrer(ctx context.Context, userID int64) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

// Set 建立推荐关系边，一个用户只能设置一次
func (r *ReferralRepository) Set(ctx context.Context, userID, referrerID int64) error {
	if userID == referrerID {
		return errors.New("不能设置自己为推荐人")
	}
	existing, err := r.GetReferrer(ctx, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrReferrerExists
	}
	return r.db.WithContext(ctx).Create(&model.Referral{
		UserID:     userID,
		ReferrerID: referrerID,
	}).Error
}

// GetTier 读外部层级表，没有记录按 0 层处理
func (r *ReferralRepository) GetTier(ctx context.Context, userID int64) (int, error) {
	var tier model.UnilevelTier
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return tier.Level, nil
}

// ListTierAtLeast 分红资格筛选：层级达到门槛的全部用户
func (r *ReferralRepository) ListTierAtLeast(ctx context.Context, minLevel int) ([]*model.UnilevelTier, error) {
	if minLevel < 1 {
		return nil, ledger.ErrInvalidState
	}
	var tiers []*model.UnilevelTier
	err := r.db.WithContext(ctx).
		Where("level >= ?", minLevel).
		Order("user_id ASC").
		Find(&tiers).Error
	return tiers, err
}
