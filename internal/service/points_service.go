package service

import (
	"context"
	"errors"
	"fmt"

	"fundledger/internal/ledger"
	"fundledger/internal/model"
	"fundledger/internal/repository"

	"gorm.io/gorm"
)

// PointsService 积分账本的唯一写入口
//
// 会员积分和商家积分各自独立核算，互不折算。
// 每次变动追加一条带 balance_after 的积分流水。
type PointsService struct {
	db         *gorm.DB
	userRepo   *repository.UserRepository
	pointsRepo *repository.PointsRepository
}

func NewPointsService(db *gorm.DB) *PointsService {
	return &PointsService{
		db:         db,
		userRepo:   repository.NewUserRepository(db),
		pointsRepo: repository.NewPointsRepository(db),
	}
}

func pointsField(kind string) (string, error) {
	switch kind {
	case model.PointsKindMember:
		return "member_points", nil
	case model.PointsKindMerchant:
		return "merchant_points", nil
	default:
		return "", fmt.Errorf("未知的积分类型: %s", kind)
	}
}

// AdjustTx 积分增减，delta 带符号，扣减不够时整笔失败
func (s *PointsService) AdjustTx(ctx context.Context, tx *gorm.DB, userID int64, kind string, delta int64, causeType, causeID, reason string) error {
	if delta == 0 {
		return errors.New("积分变动不能为0")
	}
	field, err := pointsField(kind)
	if err != nil {
		return err
	}

	if err := s.userRepo.EnsureTx(ctx, tx, userID); err != nil {
		return fmt.Errorf("初始化用户余额失败: %w", err)
	}
	if err := s.userRepo.AddToField(ctx, tx, userID, field, delta); err != nil {
		return err
	}
	balance, err := s.userRepo.FieldTx(ctx, tx, userID, field)
	if err != nil {
		return err
	}

	return s.pointsRepo.Create(ctx, tx, &model.PointsEntry{
		UserID:       userID,
		Kind:         kind,
		ChangeAmount: delta,
		BalanceAfter: balance,
		CauseType:    causeType,
		CauseID:      causeID,
		Reason:       reason,
	})
}

func (s *PointsService) Adjust(ctx context.Context, userID int64, kind string, delta int64, causeType, causeID, reason string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.AdjustTx(ctx, tx, userID, kind, delta, causeType, causeID, reason)
	})
}

// ReverseTx 积分冲正，语义与资金冲正一致：同因果逐条取反，幂等
func (s *PointsService) ReverseTx(ctx context.Context, tx *gorm.DB, causeID, reason string) (bool, error) {
	ok, err := s.pointsRepo.MarkReversed(ctx, tx, causeID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	entries, err := s.pointsRepo.ListByCause(ctx, tx, causeID)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		field, err := pointsField(entry.Kind)
		if err != nil {
			return false, err
		}
		if err := s.userRepo.AddToField(ctx, tx, entry.UserID, field, -entry.ChangeAmount); err != nil {
			return false, fmt.Errorf("冲正积分失败: userID=%d: %w", entry.UserID, err)
		}
		balance, err := s.userRepo.FieldTx(ctx, tx, entry.UserID, field)
		if err != nil {
			return false, err
		}
		if err := s.pointsRepo.Create(ctx, tx, &model.PointsEntry{
			UserID:       entry.UserID,
			Kind:         entry.Kind,
			ChangeAmount: -entry.ChangeAmount,
			BalanceAfter: balance,
			CauseType:    entry.CauseType,
			CauseID:      causeID,
			Reason:       reason,
		}); err != nil {
			return false, err
		}
	}

	return true, nil
}

func (s *PointsService) Reverse(ctx context.Context, causeID, reason string) (bool, error) {
	var reversed bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		reversed, err = s.ReverseTx(ctx, tx, causeID, reason)
		return err
	})
	return reversed, err
}

// Balance 查询某类积分当前余额，没有余额行按 0 处理
func (s *PointsService) Balance(ctx context.Context, userID int64, kind string) (int64, error) {
	field, err := pointsField(kind)
	if err != nil {
		return 0, err
	}
	balance, err := s.userRepo.FieldTx(ctx, nil, userID, field)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// ListLog 积分流水查询
func (s *PointsService) ListLog(ctx context.Context, userID int64, limit int) ([]*model.PointsEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.pointsRepo.ListByUser(ctx, userID, limit)
}
