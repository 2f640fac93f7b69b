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

func TestPointsAdjustRecordsBalanceAfter(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)
	ctx := context.Background()

	givePoints(t, db, 1, 500)

	// 500 积分扣 200，流水余额记 300
	require.NoError(t, svc.Adjust(ctx, 1, model.PointsKindMember, -200,
		model.CauseSubsidy, "sub-1", "周补贴扣减"))

	balance, err := svc.Balance(ctx, 1, model.PointsKindMember)
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	entries, err := svc.ListLog(ctx, 1, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, int64(-200), entries[0].ChangeAmount)
	assert.Equal(t, int64(300), entries[0].BalanceAfter)
}

func TestPointsInsufficientRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)
	ctx := context.Background()

	givePoints(t, db, 2, 100)

	err := svc.Adjust(ctx, 2, model.PointsKindMember, -200,
		model.CauseOrder, "ord-x", "下单抵扣")
	require.ErrorIs(t, err, ledger.ErrInsufficientPoints)

	// 不截断到 0，余额原样保留
	balance, err := svc.Balance(ctx, 2, model.PointsKindMember)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestPointsKindsIndependent(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)
	ctx := context.Background()

	require.NoError(t, svc.Adjust(ctx, 3, model.PointsKindMember, 100,
		model.CauseManualFund, "m-1", ""))
	require.NoError(t, svc.Adjust(ctx, 3, model.PointsKindMerchant, 50,
		model.CauseManualFund, "m-2", ""))

	// 会员积分和商家积分独立核算，互不折算
	member, err := svc.Balance(ctx, 3, model.PointsKindMember)
	require.NoError(t, err)
	merchant, err := svc.Balance(ctx, 3, model.PointsKindMerchant)
	require.NoError(t, err)
	assert.Equal(t, int64(100), member)
	assert.Equal(t, int64(50), merchant)
}

func TestPointsReverseExactAndIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)
	ctx := context.Background()

	givePoints(t, db, 4, 500)
	require.NoError(t, svc.Adjust(ctx, 4, model.PointsKindMember, -200,
		model.CauseOrder, "ord-4", "下单抵扣"))

	reversed, err := svc.Reverse(ctx, "ord-4", "退款返还")
	require.NoError(t, err)
	assert.True(t, reversed)

	balance, err := svc.Balance(ctx, 4, model.PointsKindMember)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	entries, err := repository.NewPointsRepository(db).ListByCause(ctx, nil, "ord-4")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	var sum int64
	for _, e := range entries {
		sum += e.ChangeAmount
	}
	assert.Equal(t, int64(0), sum)

	reversed, err = svc.Reverse(ctx, "ord-4", "重复冲正")
	require.NoError(t, err)
	assert.False(t, reversed)
}

func TestPointsZeroDeltaRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)

	err := svc.Adjust(context.Background(), 5, model.PointsKindMember, 0,
		model.CauseManualFund, "z-1", "")
	assert.Error(t, err)
}
