package service

import (
	"context"
	"errors"
	"fmt"

	"fundledger/internal/model"
	"fundledger/internal/repository"

	"gorm.io/gorm"
)

// CouponService 优惠券发放与核销
type CouponService struct {
	db         *gorm.DB
	couponRepo *repository.CouponRepository
}

func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{
		db:         db,
		couponRepo: repository.NewCouponRepository(db),
	}
}

// Distribute 直接向用户发券
func (s *CouponService) Distribute(ctx context.Context, userID, amount int64, couponType string) (*model.Coupon, error) {
	if amount <= 0 {
		return nil, errors.New("优惠券面额必须大于0")
	}
	switch couponType {
	case model.CouponTypeSubsidy, model.CouponTypeManual:
	default:
		return nil, fmt.Errorf("未知的优惠券类型: %s", couponType)
	}

	coupon := &model.Coupon{
		UserID: userID,
		Amount: amount,
		Type:   couponType,
		Status: model.CouponStatusActive,
	}
	if err := s.couponRepo.Create(ctx, nil, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

// Use 核销优惠券，active → used 只允许一次
func (s *CouponService) Use(ctx context.Context, couponID, userID int64) error {
	return s.couponRepo.MarkUsed(ctx, nil, couponID, userID)
}

// ListActive 用户可用券列表
func (s *CouponService) ListActive(ctx context.Context, userID int64) ([]*model.Coupon, error) {
	return s.couponRepo.ListByUser(ctx, userID, model.CouponStatusActive)
}
