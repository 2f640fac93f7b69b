package service

import (
	"context"
	"fmt"
	"testing"

	"fundledger/internal/config"
	"fundledger/internal/ledger"
	"fundledger/internal/model"
	"fundledger/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 60/30/10 的三池分账表，便于人工核对金额
func threeWayConfig() *config.Config {
	cfg := newTestConfig()
	cfg.Business.PoolSplit = []config.PoolSplitItem{
		{Pool: model.PoolPlatform, Bps: 6000},
		{Pool: model.PoolSubsidy, Bps: 3000},
		{Pool: model.PoolDividend, Bps: 1000},
	}
	return cfg
}

func TestCreateOrderSplitsConserve(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil, threeWayConfig())
	ctx := context.Background()

	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID: 1,
		Items:  []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 10000}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), resp.TotalAmount)
	assert.Equal(t, int64(10000), resp.PayableAmount)

	assert.Equal(t, int64(6000), poolBalance(t, db, model.PoolPlatform))
	assert.Equal(t, int64(3000), poolBalance(t, db, model.PoolSubsidy))
	assert.Equal(t, int64(1000), poolBalance(t, db, model.PoolDividend))

	// 分账之和恰好等于应付额
	entries, err := repository.NewFlowRepository(db).ListByCause(ctx, nil, resp.OrderNo)
	require.NoError(t, err)
	var sum int64
	for _, e := range entries {
		sum += e.ChangeAmount
	}
	assert.Equal(t, resp.PayableAmount, sum)
}

func TestCreateOrderSplitRemainderToPlatform(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil, threeWayConfig())
	ctx := context.Background()

	// 9999 按 60/30/10 逐项取整差 2，余数全部进平台池
	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID: 1,
		Items:  []CreateOrderItem{{ProductID: 100, Quantity: 3, UnitPrice: 3333}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9999), resp.PayableAmount)

	platform := poolBalance(t, db, model.PoolPlatform)
	subsidy := poolBalance(t, db, model.PoolSubsidy)
	dividend := poolBalance(t, db, model.PoolDividend)
	assert.Equal(t, int64(6001), platform)
	assert.Equal(t, int64(2999), subsidy)
	assert.Equal(t, int64(999), dividend)
	assert.Equal(t, int64(9999), platform+subsidy+dividend)
}

func TestCreateOrderPointsDiscount(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil, threeWayConfig())
	pointsSvc := NewPointsService(db)
	ctx := context.Background()

	givePoints(t, db, 2, 500)

	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:    2,
		Items:     []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 10000}},
		UsePoints: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), resp.PointsApplied)
	assert.Equal(t, int64(9700), resp.PayableAmount)

	balance, err := pointsSvc.Balance(ctx, 2, model.PointsKindMember)
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)

	// 分账基数是抵扣后的应付额
	total := poolBalance(t, db, model.PoolPlatform) +
		poolBalance(t, db, model.PoolSubsidy) +
		poolBalance(t, db, model.PoolDividend)
	assert.Equal(t, int64(9700), total)
}

func TestCreateOrderPointsOverCapRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil, threeWayConfig())
	ctx := context.Background()

	givePoints(t, db, 3, 10000)

	// 上限是订单总额的 50%
	_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:    3,
		Items:     []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 100}},
		UsePoints: 51,
	})
	require.Error(t, err)

	// 整单失败：积分没扣，资金池没动
	balance, err := NewPointsService(db).Balance(ctx, 3, model.PointsKindMember)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance)
	assert.Equal(t, int64(0), poolBalance(t, db, model.PoolPlatform))
}

func TestCreateOrderInsufficientPointsAborts(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil, threeWayConfig())
	ctx := context.Background()

	givePoints(t, db, 4, 100)

	_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:    4,
		Items:     []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 10000}},
		UsePoints: 500,
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientPoints)
	assert.Equal(t, int64(0), poolBalance(t, db, model.PoolPlatform))
}

func TestCreateOrderBuildsRewardChain(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil, newTestConfig())
	referralRepo := repository.NewReferralRepository(db)
	ctx := context.Background()

	// 推荐链：1 ← 2 ← 3 ← 4，3 的层级够拿第2层团队奖励，4 的不够第3层
	require.NoError(t, referralRepo.Set(ctx, 1, 2))
	require.NoError(t, referralRepo.Set(ctx, 2, 3))
	require.NoError(t, referralRepo.Set(ctx, 3, 4))
	require.NoError(t, db.Create(&model.UnilevelTier{UserID: 3, Level: 2}).Error)
	require.NoError(t, db.Create(&model.UnilevelTier{UserID: 4, Level: 1}).Error)

	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID: 1,
		Items:  []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 10000}},
	})
	require.NoError(t, err)

	rewards, err := repository.NewRewardRepository(db).ListByOrderNo(ctx, resp.OrderNo)
	require.NoError(t, err)
	require.Len(t, rewards, 2)

	// 第1层推荐奖励：10000 × 5% = 500
	assert.Equal(t, int64(2), rewards[0].UserID)
	assert.Equal(t, model.RewardKindReferral, rewards[0].Kind)
	assert.Equal(t, 1, rewards[0].Layer)
	assert.Equal(t, int64(500), rewards[0].Amount)
	assert.Equal(t, model.RewardStatusPending, rewards[0].Status)

	// 第2层团队奖励：10000 × 2% = 200
	assert.Equal(t, int64(3), rewards[1].UserID)
	assert.Equal(t, model.RewardKindTeam, rewards[1].Kind)
	assert.Equal(t, 2, rewards[1].Layer)
	assert.Equal(t, int64(200), rewards[1].Amount)

	// 奖励只是 pending 记录，推广池余额不受影响（分账入账除外）
	user2 := userBalance(t, db, 2)
	assert.Equal(t, int64(0), user2.PromotionBalance)
}

func TestOrderStatusMachine(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil, threeWayConfig())
	ctx := context.Background()

	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID: 5,
		Items:  []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 1000}},
	})
	require.NoError(t, err)

	// 跳步迁移被拒绝
	require.ErrorIs(t, svc.ConfirmReceive(ctx, resp.OrderNo), ledger.ErrInvalidState)
	require.ErrorIs(t, svc.Ship(ctx, resp.OrderNo, "SF001"), ledger.ErrInvalidState)

	require.NoError(t, svc.Pay(ctx, resp.OrderNo))
	require.ErrorIs(t, svc.Pay(ctx, resp.OrderNo), ledger.ErrInvalidState)

	require.NoError(t, svc.Ship(ctx, resp.OrderNo, "SF001"))
	order, _, err := svc.GetOrder(ctx, resp.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPendingRecv, order.Status)
	assert.Equal(t, "SF001", order.TrackingNumber)
	require.NotNil(t, order.AutoReceiveAt)

	require.NoError(t, svc.ConfirmReceive(ctx, resp.OrderNo))
	require.ErrorIs(t, svc.ConfirmReceive(ctx, resp.OrderNo), ledger.ErrInvalidState)
}

func TestRefundApproveNetsToZero(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil, threeWayConfig())
	pointsSvc := NewPointsService(db)
	ctx := context.Background()

	givePoints(t, db, 6, 500)
	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:    6,
		Items:     []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 10000}},
		UsePoints: 200,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Pay(ctx, resp.OrderNo))

	refundNo, err := svc.RefundApply(ctx, &RefundApplyRequest{OrderNo: resp.OrderNo, Reason: "不想要了"})
	require.NoError(t, err)

	// 在途退款期间不允许再次申请
	_, err = svc.RefundApply(ctx, &RefundApplyRequest{OrderNo: resp.OrderNo})
	require.ErrorIs(t, err, ledger.ErrInvalidState)

	require.NoError(t, svc.RefundApprove(ctx, refundNo, "req-1"))

	// 资金池回到下单前，积分原数返还
	assert.Equal(t, int64(0), poolBalance(t, db, model.PoolPlatform))
	assert.Equal(t, int64(0), poolBalance(t, db, model.PoolSubsidy))
	assert.Equal(t, int64(0), poolBalance(t, db, model.PoolDividend))
	balance, err := pointsSvc.Balance(ctx, 6, model.PointsKindMember)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	// 订单落入退款终态
	order, _, err := svc.GetOrder(ctx, resp.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusRefunded, order.Status)
	assert.Equal(t, model.RefundStatusRefunded, order.RefundStatus)

	// 订单因果下的资金流水签名和归零
	entries, err := repository.NewFlowRepository(db).ListByCause(ctx, nil, resp.OrderNo)
	require.NoError(t, err)
	var sum int64
	for _, e := range entries {
		sum += e.ChangeAmount
	}
	assert.Equal(t, int64(0), sum)

	// 重复审批被一次性迁移拦下
	require.ErrorIs(t, svc.RefundApprove(ctx, refundNo, "req-2"), ledger.ErrAlreadyResolved)
}

func TestRefundRejectRestoresApplyability(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil, threeWayConfig())
	ctx := context.Background()

	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID: 7,
		Items:  []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 1000}},
	})
	require.NoError(t, err)

	refundNo, err := svc.RefundApply(ctx, &RefundApplyRequest{OrderNo: resp.OrderNo})
	require.NoError(t, err)
	require.NoError(t, svc.RefundReject(ctx, refundNo))

	// 驳回不动账，且允许再次发起
	assert.Equal(t, int64(600), poolBalance(t, db, model.PoolPlatform))
	order, _, err := svc.GetOrder(ctx, resp.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.RefundStatusNone, order.RefundStatus)

	_, err = svc.RefundApply(ctx, &RefundApplyRequest{OrderNo: resp.OrderNo})
	require.NoError(t, err)
}

func TestRewardBaseIsOrderTotal(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil, newTestConfig())
	ctx := context.Background()

	require.NoError(t, repository.NewReferralRepository(db).Set(ctx, 65, 66))
	givePoints(t, db, 65, 300)

	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:    65,
		Items:     []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 10000}},
		UsePoints: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9700), resp.PayableAmount)

	// 奖励按订单总额 10000 计算，不受积分抵扣影响
	rewards, err := repository.NewRewardRepository(db).ListByOrderNo(ctx, resp.OrderNo)
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, int64(500), rewards[0].Amount)
}

func TestRefundApproveVoidsPendingRewards(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewSettlementService(db, nil, cfg)
	rewardSvc := NewRewardService(db, nil, cfg)
	ctx := context.Background()

	require.NoError(t, repository.NewReferralRepository(db).Set(ctx, 61, 62))

	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID: 61,
		Items:  []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 10000}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Pay(ctx, resp.OrderNo))

	rewards, err := repository.NewRewardRepository(db).ListByOrderNo(ctx, resp.OrderNo)
	require.NoError(t, err)
	require.Len(t, rewards, 1)

	refundNo, err := svc.RefundApply(ctx, &RefundApplyRequest{OrderNo: resp.OrderNo})
	require.NoError(t, err)
	require.NoError(t, svc.RefundApprove(ctx, refundNo, "req-61"))

	// 退款的同时奖励被驳回，不能再被审核发放
	got, err := repository.NewRewardRepository(db).GetByID(ctx, rewards[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.RewardStatusRejected, got.Status)
	require.NotNil(t, got.ProcessedAt)

	approve := true
	require.ErrorIs(t, rewardSvc.Audit(ctx, &RewardAuditRequest{
		RewardID: rewards[0].ID, Approve: &approve,
	}), ledger.ErrAlreadyResolved)
	assert.Equal(t, int64(0), userBalance(t, db, 62).PromotionBalance)
}

func TestRefundApproveClawsBackApprovedReward(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewSettlementService(db, nil, cfg)
	rewardSvc := NewRewardService(db, nil, cfg)
	ctx := context.Background()

	require.NoError(t, repository.NewReferralRepository(db).Set(ctx, 63, 64))

	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID: 63,
		Items:  []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 10000}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Pay(ctx, resp.OrderNo))

	rewards, err := repository.NewRewardRepository(db).ListByOrderNo(ctx, resp.OrderNo)
	require.NoError(t, err)
	require.Len(t, rewards, 1)

	// 分账给推广池的 500 正好付掉这笔奖励
	approve := true
	require.NoError(t, rewardSvc.Audit(ctx, &RewardAuditRequest{
		RewardID: rewards[0].ID, Approve: &approve,
	}))
	assert.Equal(t, int64(500), userBalance(t, db, 64).PromotionBalance)
	assert.Equal(t, int64(0), poolBalance(t, db, model.PoolPromotion))

	refundNo, err := svc.RefundApply(ctx, &RefundApplyRequest{OrderNo: resp.OrderNo})
	require.NoError(t, err)
	require.NoError(t, svc.RefundApprove(ctx, refundNo, "req-63"))

	// 已发放的奖励被收回，各池回到下单前
	assert.Equal(t, int64(0), userBalance(t, db, 64).PromotionBalance)
	assert.Equal(t, int64(0), poolBalance(t, db, model.PoolPromotion))
	assert.Equal(t, int64(0), poolBalance(t, db, model.PoolPlatform))

	// 奖励因果的流水符号和归零
	entries, err := repository.NewFlowRepository(db).ListByCause(ctx, nil, fmt.Sprintf("reward-%d", rewards[0].ID))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	var sum int64
	for _, e := range entries {
		sum += e.ChangeAmount
	}
	assert.Equal(t, int64(0), sum)
}

func TestCreateOrderFromCart(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db, nil, threeWayConfig())
	ctx := context.Background()

	require.NoError(t, db.Create(&model.CartLine{
		UserID: 8, ProductID: 100, Quantity: 2, UnitPrice: 300, Selected: true,
	}).Error)
	require.NoError(t, db.Create(&model.CartLine{
		UserID: 8, ProductID: 101, Quantity: 1, UnitPrice: 400, Selected: true,
	}).Error)
	require.NoError(t, db.Create(&model.CartLine{
		UserID: 8, ProductID: 102, Quantity: 1, UnitPrice: 999, Selected: false,
	}).Error)

	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{UserID: 8})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), resp.TotalAmount)

	// 选中的行已被消费，再次下单没有可用行
	_, err = svc.CreateOrder(ctx, &CreateOrderRequest{UserID: 8})
	require.Error(t, err)
}

func TestAutoReceiveExpiredOrders(t *testing.T) {
	db := newTestDB(t)
	cfg := threeWayConfig()
	cfg.Business.AutoReceiveDays = 0 // 发货即到期
	svc := NewSettlementService(db, nil, cfg)
	ctx := context.Background()

	resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID: 9,
		Items:  []CreateOrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 1000}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Pay(ctx, resp.OrderNo))
	require.NoError(t, svc.Ship(ctx, resp.OrderNo, "SF002"))

	confirmed, err := svc.AutoReceiveExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)

	order, _, err := svc.GetOrder(ctx, resp.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, order.Status)
}
