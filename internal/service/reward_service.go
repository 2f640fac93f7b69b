package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fundledger/internal/config"
	"fundledger/internal/infrastructure/lock"
	"fundledger/internal/model"
	"fundledger/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// RewardService 奖励审核队列
//
// 下单生成的奖励都是 pending，审核通过时才把钱从推广池划到
// 受益人的推广余额。审核驳回不动任何余额。
type RewardService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	ledgerSvc   *LedgerService
	rewardRepo  *repository.RewardRepository
	outboxRepo  *repository.OutboxRepository
}

func NewRewardService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *RewardService {
	return &RewardService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		ledgerSvc:   NewLedgerService(db),
		rewardRepo:  repository.NewRewardRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type RewardAuditRequest struct {
	RewardID  int64  `json:"reward_id" binding:"required"`
	Approve   *bool  `json:"approve" binding:"required"`
	RequestID string `json:"request_id"`
}

// Audit 奖励审核，一次性迁移
//
// 通过：状态迁移 + 推广池向受益人划转，同一个事务；
// 推广池余额不足时整体回滚，奖励保持 pending。
// 驳回：只改状态。重复审核返回 ErrAlreadyResolved
func (s *RewardService) Audit(ctx context.Context, req *RewardAuditRequest) error {
	reward, err := s.rewardRepo.GetByID(ctx, req.RewardID)
	if err != nil {
		return err
	}

	if s.redisClient != nil {
		auditLock := lock.NewAuditLock(s.redisClient, "reward", req.RewardID, req.RequestID)
		if err := auditLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer auditLock.Unlock(ctx)
	}

	approve := req.Approve != nil && *req.Approve
	if !approve {
		return s.rewardRepo.Resolve(ctx, nil, req.RewardID, model.RewardStatusRejected)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.rewardRepo.Resolve(ctx, tx, req.RewardID, model.RewardStatusApproved); err != nil {
			return err
		}

		causeID := fmt.Sprintf("reward-%d", reward.ID)
		if err := s.ledgerSvc.TransferToUserTx(ctx, tx, model.PoolPromotion, reward.UserID, model.FieldPromotion,
			reward.Amount, model.CauseReward, causeID,
			fmt.Sprintf("奖励发放-%s-%s", reward.Kind, reward.OrderNo)); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"reward_id":   reward.ID,
			"order_no":    reward.OrderNo,
			"user_id":     reward.UserID,
			"kind":        reward.Kind,
			"amount":      reward.Amount,
			"approved_at": time.Now().Format(time.RFC3339),
		})
		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: causeID,
			Topic:      s.cfg.Kafka.Topic.Audit,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("[Reward] 奖励审核通过: id=%d, userID=%d, amount=%d", reward.ID, reward.UserID, reward.Amount)
	return nil
}

// ListPending 待审核奖励列表
func (s *RewardService) ListPending(ctx context.Context, limit int) ([]*model.PendingReward, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.rewardRepo.ListByStatus(ctx, model.RewardStatusPending, limit)
}
