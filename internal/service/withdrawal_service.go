package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"fundledger/internal/config"
	"fundledger/internal/infrastructure/lock"
	"fundledger/internal/model"
	"fundledger/internal/repository"
	"fundledger/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// WithdrawalService 提现审核
//
// 申请时不冻结、不扣款；审核通过的那一刻才校验并扣减可提现余额。
// 余额不够时审核事务整体回滚，申请保持 pending，等用户余额变化后再审
type WithdrawalService struct {
	db             *gorm.DB
	redisClient    *redis.Client
	cfg            *config.Config
	ledgerSvc      *LedgerService
	withdrawalRepo *repository.WithdrawalRepository
	outboxRepo     *repository.OutboxRepository
}

func NewWithdrawalService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *WithdrawalService {
	return &WithdrawalService{
		db:             db,
		redisClient:    redisClient,
		cfg:            cfg,
		ledgerSvc:      NewLedgerService(db),
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
	}
}

type WithdrawalApplyRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// Apply 发起提现申请
func (s *WithdrawalService) Apply(ctx context.Context, req *WithdrawalApplyRequest) (*model.Withdrawal, error) {
	if req.Amount <= 0 {
		return nil, errors.New("提现金额必须大于0")
	}
	withdrawal := &model.Withdrawal{
		WithdrawalNo: idgen.GenerateWithdrawalNo(),
		UserID:       req.UserID,
		Amount:       req.Amount,
		Status:       model.WithdrawalStatusPending,
	}
	if err := s.withdrawalRepo.Create(ctx, nil, withdrawal); err != nil {
		return nil, err
	}
	return withdrawal, nil
}

type WithdrawalAuditRequest struct {
	WithdrawalID int64  `json:"withdrawal_id" binding:"required"`
	Approve      *bool  `json:"approve" binding:"required"`
	Remark       string `json:"remark"`
	RequestID    string `json:"request_id"`
}

// Audit 提现审核，一次性迁移
func (s *WithdrawalService) Audit(ctx context.Context, req *WithdrawalAuditRequest) error {
	withdrawal, err := s.withdrawalRepo.GetByID(ctx, req.WithdrawalID)
	if err != nil {
		return err
	}

	if s.redisClient != nil {
		auditLock := lock.NewAuditLock(s.redisClient, "withdrawal", req.WithdrawalID, req.RequestID)
		if err := auditLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer auditLock.Unlock(ctx)
	}

	approve := req.Approve != nil && *req.Approve
	if !approve {
		return s.withdrawalRepo.Resolve(ctx, nil, req.WithdrawalID, model.WithdrawalStatusRejected, req.Remark)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.withdrawalRepo.Resolve(ctx, tx, req.WithdrawalID, model.WithdrawalStatusApproved, req.Remark); err != nil {
			return err
		}

		// 余额校验就是这次扣减本身：不够扣则回滚，申请留在 pending
		if err := s.ledgerSvc.DebitUserTx(ctx, tx, withdrawal.UserID, model.FieldWithdrawable,
			withdrawal.Amount, model.CauseWithdrawal, withdrawal.WithdrawalNo,
			fmt.Sprintf("提现-%s", withdrawal.WithdrawalNo)); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"withdrawal_no": withdrawal.WithdrawalNo,
			"user_id":       withdrawal.UserID,
			"amount":        withdrawal.Amount,
			"approved_at":   time.Now().Format(time.RFC3339),
		})
		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: withdrawal.WithdrawalNo,
			Topic:      s.cfg.Kafka.Topic.Audit,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("[Withdrawal] 提现审核通过: no=%s, userID=%d, amount=%d",
		withdrawal.WithdrawalNo, withdrawal.UserID, withdrawal.Amount)
	return nil
}

// ListPending 待审核提现列表
func (s *WithdrawalService) ListPending(ctx context.Context, limit int) ([]*model.Withdrawal, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.withdrawalRepo.ListByStatus(ctx, model.WithdrawalStatusPending, limit)
}
