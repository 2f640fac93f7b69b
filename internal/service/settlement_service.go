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
	"fundledger/internal/ledger"
	"fundledger/internal/model"
	"fundledger/internal/repository"
	"fundledger/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SettlementService 订单结算：下单分账、订单状态机、退款冲正
//
// 下单时一次性完成：订单落库、积分抵扣、按分账表给各资金池入账、
// 生成待审核奖励、消费购物车。整个结算要么全部成功要么全部回滚。
// 退款不重算金额，按订单因果把原始流水逐条冲正。
type SettlementService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	ledgerSvc    *LedgerService
	pointsSvc    *PointsService
	orderRepo    *repository.OrderRepository
	refundRepo   *repository.RefundRepository
	rewardRepo   *repository.RewardRepository
	cartRepo     *repository.CartRepository
	referralRepo *repository.ReferralRepository
	outboxRepo   *repository.OutboxRepository
}

func NewSettlementService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *SettlementService {
	return &SettlementService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		ledgerSvc:    NewLedgerService(db),
		pointsSvc:    NewPointsService(db),
		orderRepo:    repository.NewOrderRepository(db),
		refundRepo:   repository.NewRefundRepository(db),
		rewardRepo:   repository.NewRewardRepository(db),
		cartRepo:     repository.NewCartRepository(db),
		referralRepo: repository.NewReferralRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
}

type CreateOrderItem struct {
	ProductID int64 `json:"product_id" binding:"required"`
	SkuID     int64 `json:"sku_id"`
	Quantity  int64 `json:"quantity" binding:"required,gt=0"`
	UnitPrice int64 `json:"unit_price" binding:"required,gt=0"`
}

type CreateOrderRequest struct {
	UserID    int64             `json:"user_id" binding:"required"`
	Items     []CreateOrderItem `json:"items"`      // 为空时取购物车中选中的行
	UsePoints int64             `json:"use_points"` // 抵扣的会员积分数
}

type CreateOrderResponse struct {
	OrderNo       string `json:"order_no"`
	TotalAmount   int64  `json:"total_amount"`
	PointsApplied int64  `json:"points_applied"`
	PayableAmount int64  `json:"payable_amount"`
	Status        string `json:"status"`
}

// splitShares 按分账表把 base 拆分到各资金池
// 整数万分比逐项取整，余数全部并入平台池，保证分账之和恰好等于 base
func splitShares(split []config.PoolSplitItem, base int64) map[string]int64 {
	shares := make(map[string]int64, len(split))
	var distributed int64
	platformIdx := 0
	for i, item := range split {
		if item.Pool == model.PoolPlatform {
			platformIdx = i
		}
		share := base * item.Bps / 10000
		shares[item.Pool] = share
		distributed += share
	}
	if remainder := base - distributed; remainder != 0 {
		shares[split[platformIdx].Pool] += remainder
	}
	return shares
}

// CreateOrder 下单结算
func (s *SettlementService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	if req.UsePoints < 0 {
		return nil, errors.New("抵扣积分不能为负数")
	}
	if len(s.cfg.Business.PoolSplit) == 0 {
		return nil, errors.New("分账表未配置")
	}

	// 购物车与推荐链是下单前的只读快照，放在事务外读取
	var cartLineIDs []int64
	items := make([]*model.OrderItem, 0, len(req.Items))
	if len(req.Items) > 0 {
		for _, item := range req.Items {
			items = append(items, &model.OrderItem{
				ProductID: item.ProductID,
				SkuID:     item.SkuID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}
	} else {
		lines, err := s.cartRepo.ListSelected(ctx, nil, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("读取购物车失败: %w", err)
		}
		if len(lines) == 0 {
			return nil, errors.New("购物车没有选中的商品")
		}
		for _, line := range lines {
			cartLineIDs = append(cartLineIDs, line.ID)
			items = append(items, &model.OrderItem{
				ProductID: line.ProductID,
				SkuID:     line.SkuID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			})
		}
	}

	var totalAmount int64
	for _, item := range items {
		totalAmount += item.Quantity * item.UnitPrice
	}
	if totalAmount <= 0 {
		return nil, errors.New("订单金额必须大于0")
	}

	// 积分抵扣上限按订单总额的万分比折算
	discount := req.UsePoints * s.cfg.Business.PointValue
	maxDiscount := totalAmount * s.cfg.Business.MaxPointsDiscountBps / 10000
	if discount > maxDiscount {
		return nil, fmt.Errorf("积分抵扣超出上限: 最多可抵扣 %d", maxDiscount)
	}
	payableAmount := totalAmount - discount

	// 奖励按订单总额计算，不受积分抵扣影响
	rewards, err := s.buildPendingRewards(ctx, req.UserID, totalAmount)
	if err != nil {
		return nil, fmt.Errorf("计算奖励失败: %w", err)
	}

	orderNo := idgen.GenerateOrderNo()
	order := &model.Order{
		OrderNo:       orderNo,
		UserID:        req.UserID,
		TotalAmount:   totalAmount,
		PointsApplied: req.UsePoints,
		PayableAmount: payableAmount,
		Status:        model.OrderStatusCreated,
		RefundStatus:  model.RefundStatusNone,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}
		for _, item := range items {
			item.OrderID = order.ID
		}
		if err := s.orderRepo.CreateItems(ctx, tx, items); err != nil {
			return fmt.Errorf("创建订单明细失败: %w", err)
		}

		if len(cartLineIDs) > 0 {
			if err := s.cartRepo.MarkConsumed(ctx, tx, cartLineIDs); err != nil {
				return fmt.Errorf("消费购物车失败: %w", err)
			}
		}

		if req.UsePoints > 0 {
			if err := s.pointsSvc.AdjustTx(ctx, tx, req.UserID, model.PointsKindMember, -req.UsePoints,
				model.CauseOrder, orderNo, "下单积分抵扣"); err != nil {
				return err
			}
		}

		// 分账入池，cause 统一挂订单号，退款时按因果整体冲正
		shares := splitShares(s.cfg.Business.PoolSplit, payableAmount)
		for _, item := range s.cfg.Business.PoolSplit {
			share := shares[item.Pool]
			if share <= 0 {
				continue
			}
			if err := s.ledgerSvc.CreditTx(ctx, tx, item.Pool, share,
				model.CauseOrder, orderNo, fmt.Sprintf("订单分账-%s", orderNo)); err != nil {
				return fmt.Errorf("资金池入账失败: pool=%s: %w", item.Pool, err)
			}
		}

		for _, reward := range rewards {
			reward.OrderNo = orderNo
			if err := s.rewardRepo.Create(ctx, tx, reward); err != nil {
				return fmt.Errorf("创建待审核奖励失败: %w", err)
			}
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"order_no":       orderNo,
			"user_id":        req.UserID,
			"total_amount":   totalAmount,
			"points_applied": req.UsePoints,
			"payable_amount": payableAmount,
			"settled_at":     time.Now().Format(time.RFC3339),
		})
		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: orderNo,
			Topic:      s.cfg.Kafka.Topic.Settlement,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Settlement] 下单结算完成: orderNo=%s, total=%d, payable=%d, rewards=%d",
		orderNo, totalAmount, payableAmount, len(rewards))

	return &CreateOrderResponse{
		OrderNo:       orderNo,
		TotalAmount:   totalAmount,
		PointsApplied: req.UsePoints,
		PayableAmount: payableAmount,
		Status:        order.Status,
	}, nil
}

// buildPendingRewards 沿推荐链生成待审核奖励
//
// 第1层直接推荐人拿推荐奖励；第2层起为团队奖励，
// 要求该层祖先的会员层级不低于所在层数，最多追溯配置的层数。
// 这里只生成 pending 记录，资金在审核通过时才从推广池划转
func (s *SettlementService) buildPendingRewards(ctx context.Context, buyerID int64, base int64) ([]*model.PendingReward, error) {
	var rewards []*model.PendingReward

	currentID := buyerID
	for depth := 1; depth <= s.cfg.Business.TeamDepth; depth++ {
		referral, err := s.referralRepo.GetReferrer(ctx, currentID)
		if err != nil {
			return nil, err
		}
		if referral == nil {
			break
		}
		ancestorID := referral.ReferrerID

		if depth == 1 {
			amount := base * s.cfg.Business.ReferralRateBps / 10000
			if amount > 0 {
				rewards = append(rewards, &model.PendingReward{
					UserID: ancestorID,
					Kind:   model.RewardKindReferral,
					Layer:  depth,
					Amount: amount,
					Status: model.RewardStatusPending,
				})
			}
		} else {
			level, err := s.referralRepo.GetTier(ctx, ancestorID)
			if err != nil {
				return nil, err
			}
			if level >= depth {
				amount := base * s.cfg.Business.TeamRateBps / 10000
				if amount > 0 {
					rewards = append(rewards, &model.PendingReward{
						UserID: ancestorID,
						Kind:   model.RewardKindTeam,
						Layer:  depth,
						Amount: amount,
						Status: model.RewardStatusPending,
					})
				}
			}
		}

		currentID = ancestorID
	}

	return rewards, nil
}

// Pay 支付确认 created → pending_ship
func (s *SettlementService) Pay(ctx context.Context, orderNo string) error {
	return s.orderRepo.UpdateStatus(ctx, nil, orderNo, model.OrderStatusCreated, model.OrderStatusPendingShip, nil)
}

// Ship 发货 pending_ship → pending_recv，记录运单号并盖上自动收货期限
func (s *SettlementService) Ship(ctx context.Context, orderNo, trackingNumber string) error {
	autoReceiveAt := time.Now().AddDate(0, 0, s.cfg.Business.AutoReceiveDays)
	return s.orderRepo.UpdateStatus(ctx, nil, orderNo, model.OrderStatusPendingShip, model.OrderStatusPendingRecv,
		map[string]interface{}{
			"tracking_number": trackingNumber,
			"auto_receive_at": &autoReceiveAt,
		})
}

// ConfirmReceive 确认收货 pending_recv → completed，用户与后台任务共用
func (s *SettlementService) ConfirmReceive(ctx context.Context, orderNo string) error {
	return s.orderRepo.UpdateStatus(ctx, nil, orderNo, model.OrderStatusPendingRecv, model.OrderStatusCompleted, nil)
}

type RefundApplyRequest struct {
	OrderNo string `json:"order_no" binding:"required"`
	Reason  string `json:"reason"`
}

// RefundApply 发起退款申请，同一订单最多一笔在途退款
func (s *SettlementService) RefundApply(ctx context.Context, req *RefundApplyRequest) (string, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, req.OrderNo)
	if err != nil {
		return "", err
	}
	if order.Status == model.OrderStatusRefunded || order.RefundStatus == model.RefundStatusRefunded {
		return "", fmt.Errorf("%w: 订单已退款", ledger.ErrInvalidState)
	}

	refundNo := idgen.GenerateRefundNo()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// NONE → PENDING 的条件更新天然排他：已有在途退款时这里失败
		if err := s.orderRepo.UpdateRefundStatus(ctx, tx, req.OrderNo, model.RefundStatusNone, model.RefundStatusPending); err != nil {
			if errors.Is(err, ledger.ErrInvalidState) {
				return fmt.Errorf("%w: 已存在退款申请", ledger.ErrInvalidState)
			}
			return err
		}
		return s.refundRepo.Create(ctx, tx, &model.Refund{
			RefundNo: refundNo,
			OrderNo:  req.OrderNo,
			UserID:   order.UserID,
			Status:   model.RefundPending,
			Reason:   req.Reason,
		})
	})
	if err != nil {
		return "", err
	}
	return refundNo, nil
}

// RefundApprove 退款审批通过
//
// 单事务内完成：退款单终审、订单状态落终态、资金流水与积分流水
// 按订单因果冲正。任何一步失败整体回滚，退款单保持 pending 可重试。
// 冲正本身幂等，重复审批在退款单终审一步就会被拦下
func (s *SettlementService) RefundApprove(ctx context.Context, refundNo, requestID string) error {
	refund, err := s.refundRepo.GetByRefundNo(ctx, refundNo)
	if err != nil {
		return err
	}
	if refund.Status != model.RefundPending {
		return ledger.ErrAlreadyResolved
	}

	if s.redisClient != nil {
		refundLock := lock.NewOrderLock(s.redisClient, refund.OrderNo, requestID)
		if err := refundLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer refundLock.Unlock(ctx)
	}

	order, err := s.orderRepo.GetByOrderNo(ctx, refund.OrderNo)
	if err != nil {
		return err
	}
	orderRewards, err := s.rewardRepo.ListByOrderNo(ctx, refund.OrderNo)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.refundRepo.Resolve(ctx, tx, refundNo, model.RefundSuccess); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateRefundStatus(ctx, tx, refund.OrderNo, model.RefundStatusPending, model.RefundStatusRefunded); err != nil {
			return err
		}
		if order.Status != model.OrderStatusRefunded {
			if err := s.orderRepo.UpdateStatus(ctx, tx, refund.OrderNo, order.Status, model.OrderStatusRefunded, nil); err != nil {
				return err
			}
		}

		// 订单的奖励随退款一并作废：pending 的整体驳回，
		// 已发放的按奖励因果冲正，把钱从受益人收回推广池。
		// 收回必须先于订单冲正，推广池要先拿回奖励款才付得起分账回退
		if _, err := s.rewardRepo.RejectPendingByOrderNo(ctx, tx, refund.OrderNo); err != nil {
			return err
		}
		for _, reward := range orderRewards {
			if reward.Status != model.RewardStatusApproved {
				continue
			}
			causeID := fmt.Sprintf("reward-%d", reward.ID)
			if _, err := s.ledgerSvc.ReverseTx(ctx, tx, causeID, fmt.Sprintf("退款收回奖励-%s", refundNo)); err != nil {
				return err
			}
		}

		if _, err := s.ledgerSvc.ReverseTx(ctx, tx, refund.OrderNo, fmt.Sprintf("退款冲正-%s", refundNo)); err != nil {
			return err
		}
		if _, err := s.pointsSvc.ReverseTx(ctx, tx, refund.OrderNo, fmt.Sprintf("退款返还积分-%s", refundNo)); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"refund_no":   refundNo,
			"order_no":    refund.OrderNo,
			"user_id":     refund.UserID,
			"status":      model.RefundSuccess,
			"refunded_at": time.Now().Format(time.RFC3339),
		})
		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: refundNo,
			Topic:      s.cfg.Kafka.Topic.Settlement,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("[Settlement] 退款成功: refundNo=%s, orderNo=%s", refundNo, refund.OrderNo)
	return nil
}

// RefundReject 退款驳回，订单退款叠加状态回到 none，可再次发起
func (s *SettlementService) RefundReject(ctx context.Context, refundNo string) error {
	refund, err := s.refundRepo.GetByRefundNo(ctx, refundNo)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.refundRepo.Resolve(ctx, tx, refundNo, model.RefundRejected); err != nil {
			return err
		}
		return s.orderRepo.UpdateRefundStatus(ctx, tx, refund.OrderNo, model.RefundStatusPending, model.RefundStatusNone)
	})
}

// GetOrder 订单查询
func (s *SettlementService) GetOrder(ctx context.Context, orderNo string) (*model.Order, []*model.OrderItem, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.orderRepo.ListItems(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// AutoReceiveExpired 把超过自动收货期限的订单批量确认收货，返回处理条数
func (s *SettlementService) AutoReceiveExpired(ctx context.Context, limit int) (int, error) {
	orders, err := s.orderRepo.ListAutoReceivable(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}
	confirmed := 0
	for _, order := range orders {
		if err := s.ConfirmReceive(ctx, order.OrderNo); err != nil {
			// 并发下可能已被用户手动确认或进入退款，跳过即可
			log.Printf("[Settlement] 自动收货跳过: orderNo=%s, err=%v", order.OrderNo, err)
			continue
		}
		confirmed++
	}
	return confirmed, nil
}
