package service

import (
	"context"
	"testing"

	"fundledger/internal/ledger"
	"fundledger/internal/model"
	"fundledger/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewardAuditApprove(t *testing.T) {
	db := newTestDB(t)
	svc := NewRewardService(db, nil, newTestConfig())
	ctx := context.Background()

	fundPool(t, db, model.PoolPromotion, 1000)
	reward := &model.PendingReward{
		OrderNo: "ORD-1", UserID: 11, Kind: model.RewardKindReferral,
		Layer: 1, Amount: 500, Status: model.RewardStatusPending,
	}
	require.NoError(t, db.Create(reward).Error)

	approve := true
	require.NoError(t, svc.Audit(ctx, &RewardAuditRequest{RewardID: reward.ID, Approve: &approve}))

	// 推广池 → 受益人推广余额
	assert.Equal(t, int64(500), poolBalance(t, db, model.PoolPromotion))
	assert.Equal(t, int64(500), userBalance(t, db, 11).PromotionBalance)

	got, err := repository.NewRewardRepository(db).GetByID(ctx, reward.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RewardStatusApproved, got.Status)
	require.NotNil(t, got.ProcessedAt)

	// 重复审核被拦下，余额不再变化
	require.ErrorIs(t, svc.Audit(ctx, &RewardAuditRequest{RewardID: reward.ID, Approve: &approve}),
		ledger.ErrAlreadyResolved)
	assert.Equal(t, int64(500), userBalance(t, db, 11).PromotionBalance)
}

func TestRewardAuditReject(t *testing.T) {
	db := newTestDB(t)
	svc := NewRewardService(db, nil, newTestConfig())
	ctx := context.Background()

	fundPool(t, db, model.PoolPromotion, 1000)
	reward := &model.PendingReward{
		OrderNo: "ORD-2", UserID: 12, Kind: model.RewardKindTeam,
		Layer: 2, Amount: 200, Status: model.RewardStatusPending,
	}
	require.NoError(t, db.Create(reward).Error)

	approve := false
	require.NoError(t, svc.Audit(ctx, &RewardAuditRequest{RewardID: reward.ID, Approve: &approve}))

	// 驳回不动任何余额
	assert.Equal(t, int64(1000), poolBalance(t, db, model.PoolPromotion))
	assert.Equal(t, int64(0), userBalance(t, db, 12).PromotionBalance)

	got, err := repository.NewRewardRepository(db).GetByID(ctx, reward.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RewardStatusRejected, got.Status)
}

func TestRewardAuditInsufficientPoolKeepsPending(t *testing.T) {
	db := newTestDB(t)
	svc := NewRewardService(db, nil, newTestConfig())
	ctx := context.Background()

	fundPool(t, db, model.PoolPromotion, 100)
	reward := &model.PendingReward{
		OrderNo: "ORD-3", UserID: 13, Kind: model.RewardKindReferral,
		Layer: 1, Amount: 500, Status: model.RewardStatusPending,
	}
	require.NoError(t, db.Create(reward).Error)

	approve := true
	err := svc.Audit(ctx, &RewardAuditRequest{RewardID: reward.ID, Approve: &approve})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// 整体回滚：奖励留在 pending，可在注资后重审
	got, err := repository.NewRewardRepository(db).GetByID(ctx, reward.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RewardStatusPending, got.Status)
	assert.Equal(t, int64(100), poolBalance(t, db, model.PoolPromotion))

	fundPool(t, db, model.PoolPromotion, 400)
	require.NoError(t, svc.Audit(ctx, &RewardAuditRequest{RewardID: reward.ID, Approve: &approve}))
	assert.Equal(t, int64(500), userBalance(t, db, 13).PromotionBalance)
}

func TestRewardListPending(t *testing.T) {
	db := newTestDB(t)
	svc := NewRewardService(db, nil, newTestConfig())
	ctx := context.Background()

	require.NoError(t, db.Create(&model.PendingReward{
		OrderNo: "ORD-4", UserID: 14, Kind: model.RewardKindReferral,
		Layer: 1, Amount: 100, Status: model.RewardStatusPending,
	}).Error)
	require.NoError(t, db.Create(&model.PendingReward{
		OrderNo: "ORD-5", UserID: 15, Kind: model.RewardKindReferral,
		Layer: 1, Amount: 100, Status: model.RewardStatusApproved,
	}).Error)

	pending, err := svc.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ORD-4", pending[0].OrderNo)
}
