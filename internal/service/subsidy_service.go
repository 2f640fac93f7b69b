package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"fundledger/internal/config"
	"fundledger/internal/ledger"
	"fundledger/internal/model"
	"fundledger/internal/repository"

	"gorm.io/gorm"
)

// SubsidyService 补贴与分红引擎
//
// 周补贴和层级分红都是批处理：每个用户一个独立事务，
// 单个用户失败只记入批次报告，绝不拖垮整批。
// 资金池注资与清空也在这里，都走账本服务留痕
type SubsidyService struct {
	db           *gorm.DB
	cfg          *config.Config
	ledgerSvc    *LedgerService
	pointsSvc    *PointsService
	userRepo     *repository.UserRepository
	referralRepo *repository.ReferralRepository
	subsidyRepo  *repository.SubsidyRepository
	couponRepo   *repository.CouponRepository
}

func NewSubsidyService(db *gorm.DB, cfg *config.Config) *SubsidyService {
	return &SubsidyService{
		db:           db,
		cfg:          cfg,
		ledgerSvc:    NewLedgerService(db),
		pointsSvc:    NewPointsService(db),
		userRepo:     repository.NewUserRepository(db),
		referralRepo: repository.NewReferralRepository(db),
		subsidyRepo:  repository.NewSubsidyRepository(db),
		couponRepo:   repository.NewCouponRepository(db),
	}
}

type BatchFailure struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

// BatchReport 批处理结果报告
type BatchReport struct {
	BatchID   string         `json:"batch_id"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failures  []BatchFailure `json:"failures"`
}

// DistributeWeeklySubsidy 周补贴发放
//
// 资格：会员积分不低于配置的积分成本。每个用户独立事务：
// 补贴池出账 + 积分扣减 + 发优惠券 + 补贴记录，任何一步失败
// 该用户整体回滚并记入报告，继续处理下一个用户
func (s *SubsidyService) DistributeWeeklySubsidy(ctx context.Context, batchID string) (*BatchReport, error) {
	cost := s.cfg.Business.SubsidyPointCost
	amount := s.cfg.Business.SubsidyCouponAmount
	if cost <= 0 || amount <= 0 {
		return nil, errors.New("补贴参数未配置")
	}

	users, err := s.userRepo.ListWithMemberPointsAtLeast(ctx, cost)
	if err != nil {
		return nil, fmt.Errorf("筛选补贴用户失败: %w", err)
	}

	report := &BatchReport{BatchID: batchID, Total: len(users)}
	for _, user := range users {
		userID := user.UserID
		causeID := fmt.Sprintf("%s-%d", batchID, userID)

		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.ledgerSvc.DebitTx(ctx, tx, model.PoolSubsidy, amount,
				model.CauseSubsidy, causeID, "周补贴"); err != nil {
				return err
			}
			if err := s.pointsSvc.AdjustTx(ctx, tx, userID, model.PointsKindMember, -cost,
				model.CauseSubsidy, causeID, "周补贴扣减积分"); err != nil {
				return err
			}
			coupon := &model.Coupon{
				UserID: userID,
				Amount: amount,
				Type:   model.CouponTypeSubsidy,
				Status: model.CouponStatusActive,
			}
			if err := s.couponRepo.Create(ctx, tx, coupon); err != nil {
				return err
			}
			return s.subsidyRepo.Create(ctx, tx, &model.SubsidyRecord{
				BatchID:        batchID,
				UserID:         userID,
				SubsidyAmount:  amount,
				PointsDeducted: cost,
				CouponID:       coupon.ID,
			})
		})
		if err != nil {
			report.Failures = append(report.Failures, BatchFailure{UserID: userID, Reason: err.Error()})
			continue
		}
		report.Succeeded++
	}

	log.Printf("[Subsidy] 周补贴批次完成: batchID=%s, total=%d, succeeded=%d, failed=%d",
		batchID, report.Total, report.Succeeded, len(report.Failures))
	return report, nil
}

// DistributeDividend 层级分红
//
// 资格：会员层级不低于配置门槛；额度 = 层级 × 每层分红额。
// 分红池出账、用户积分入账，同一个用户因果，隔离规则同周补贴
func (s *SubsidyService) DistributeDividend(ctx context.Context, batchID string) (*BatchReport, error) {
	perLevel := s.cfg.Business.DividendPerLevel
	if perLevel <= 0 {
		return nil, errors.New("分红参数未配置")
	}

	tiers, err := s.referralRepo.ListTierAtLeast(ctx, s.cfg.Business.DividendMinLevel)
	if err != nil {
		return nil, fmt.Errorf("筛选分红用户失败: %w", err)
	}

	report := &BatchReport{BatchID: batchID, Total: len(tiers)}
	for _, tier := range tiers {
		userID := tier.UserID
		amount := int64(tier.Level) * perLevel
		if amount <= 0 {
			continue
		}
		causeID := fmt.Sprintf("%s-%d", batchID, userID)

		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.ledgerSvc.DebitTx(ctx, tx, model.PoolDividend, amount,
				model.CauseDividend, causeID, fmt.Sprintf("层级分红-L%d", tier.Level)); err != nil {
				return err
			}
			return s.pointsSvc.AdjustTx(ctx, tx, userID, model.PointsKindMember, amount,
				model.CauseDividend, causeID, fmt.Sprintf("层级分红-L%d", tier.Level))
		})
		if err != nil {
			report.Failures = append(report.Failures, BatchFailure{UserID: userID, Reason: err.Error()})
			continue
		}
		report.Succeeded++
	}

	log.Printf("[Subsidy] 分红批次完成: batchID=%s, total=%d, succeeded=%d, failed=%d",
		batchID, report.Total, report.Succeeded, len(report.Failures))
	return report, nil
}

// FundPool 管理员向资金池注资
func (s *SubsidyService) FundPool(ctx context.Context, pool string, amount int64, causeID string) error {
	if amount <= 0 {
		return errors.New("注资金额必须大于0")
	}
	return s.ledgerSvc.Credit(ctx, pool, amount, model.CauseManualFund, causeID, "管理员注资")
}

// ClearPool 清空资金池，返回清出的金额
// 余额为零按无操作处理，不报错
func (s *SubsidyService) ClearPool(ctx context.Context, pool string, causeID string) (int64, error) {
	var cleared int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		balance, err := s.ledgerSvc.accountRepo.BalanceTx(ctx, tx, pool)
		if err != nil {
			return err
		}
		if balance == 0 {
			return nil
		}
		if balance < 0 {
			return ledger.ErrInvalidState
		}
		cleared = balance
		return s.ledgerSvc.DebitTx(ctx, tx, pool, balance, model.CauseClearPool, causeID, "清空资金池")
	})
	return cleared, err
}
