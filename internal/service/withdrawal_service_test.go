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

func TestWithdrawalApplyDoesNotDebit(t *testing.T) {
	db := newTestDB(t)
	svc := NewWithdrawalService(db, nil, newTestConfig())
	ledgerSvc := NewLedgerService(db)
	ctx := context.Background()

	fundPool(t, db, model.PoolPlatform, 5000)
	require.NoError(t, ledgerSvc.TransferToUser(ctx, model.PoolPlatform, 21, model.FieldWithdrawable,
		1500, model.CauseManualFund, "seed-w-21", "测试余额"))

	withdrawal, err := svc.Apply(ctx, &WithdrawalApplyRequest{UserID: 21, Amount: 1000})
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusPending, withdrawal.Status)

	// 申请阶段不冻结不扣款
	assert.Equal(t, int64(1500), userBalance(t, db, 21).WithdrawableBalance)
}

func TestWithdrawalAuditApproveDebitsAtApproval(t *testing.T) {
	db := newTestDB(t)
	svc := NewWithdrawalService(db, nil, newTestConfig())
	ledgerSvc := NewLedgerService(db)
	ctx := context.Background()

	fundPool(t, db, model.PoolPlatform, 5000)
	require.NoError(t, ledgerSvc.TransferToUser(ctx, model.PoolPlatform, 22, model.FieldWithdrawable,
		1500, model.CauseManualFund, "seed-w-22", "测试余额"))

	withdrawal, err := svc.Apply(ctx, &WithdrawalApplyRequest{UserID: 22, Amount: 1000})
	require.NoError(t, err)

	approve := true
	require.NoError(t, svc.Audit(ctx, &WithdrawalAuditRequest{
		WithdrawalID: withdrawal.ID, Approve: &approve, Remark: "审核通过",
	}))

	assert.Equal(t, int64(500), userBalance(t, db, 22).WithdrawableBalance)

	got, err := repository.NewWithdrawalRepository(db).GetByID(ctx, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusApproved, got.Status)

	// 提现流水挂提现单号因果
	entries, err := repository.NewFlowRepository(db).ListByCause(ctx, nil, withdrawal.WithdrawalNo)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-1000), entries[0].ChangeAmount)

	// 重复审核被拦下
	require.ErrorIs(t, svc.Audit(ctx, &WithdrawalAuditRequest{
		WithdrawalID: withdrawal.ID, Approve: &approve,
	}), ledger.ErrAlreadyResolved)
}

func TestWithdrawalAuditInsufficientKeepsPending(t *testing.T) {
	db := newTestDB(t)
	svc := NewWithdrawalService(db, nil, newTestConfig())
	ledgerSvc := NewLedgerService(db)
	ctx := context.Background()

	fundPool(t, db, model.PoolPlatform, 5000)
	require.NoError(t, ledgerSvc.TransferToUser(ctx, model.PoolPlatform, 23, model.FieldWithdrawable,
		1500, model.CauseManualFund, "seed-w-23", "测试余额"))

	// 余额 1500 申请 2000：审核通过时校验失败
	withdrawal, err := svc.Apply(ctx, &WithdrawalApplyRequest{UserID: 23, Amount: 2000})
	require.NoError(t, err)

	approve := true
	err = svc.Audit(ctx, &WithdrawalAuditRequest{WithdrawalID: withdrawal.ID, Approve: &approve})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// 申请留在 pending，余额原样
	got, err := repository.NewWithdrawalRepository(db).GetByID(ctx, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusPending, got.Status)
	assert.Equal(t, int64(1500), userBalance(t, db, 23).WithdrawableBalance)
}

func TestWithdrawalAuditReject(t *testing.T) {
	db := newTestDB(t)
	svc := NewWithdrawalService(db, nil, newTestConfig())
	ctx := context.Background()

	withdrawal, err := svc.Apply(ctx, &WithdrawalApplyRequest{UserID: 24, Amount: 300})
	require.NoError(t, err)

	approve := false
	require.NoError(t, svc.Audit(ctx, &WithdrawalAuditRequest{
		WithdrawalID: withdrawal.ID, Approve: &approve, Remark: "资料不全",
	}))

	got, err := repository.NewWithdrawalRepository(db).GetByID(ctx, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusRejected, got.Status)
	assert.Equal(t, "资料不全", got.AuditRemark)
}
