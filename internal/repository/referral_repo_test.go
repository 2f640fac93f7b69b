package repository

import (
	"context"
	"fmt"
	"testing"

	"fundledger/internal/ledger"
	"fundledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Referral{},
		&model.UnilevelTier{},
		&model.CartLine{},
	))
	return db
}

func TestReferralSetRules(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewReferralRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, 1, 2))

	// 推荐人只能设置一次
	require.ErrorIs(t, repo.Set(ctx, 1, 3), ErrReferrerExists)

	// 不能推荐自己
	require.Error(t, repo.Set(ctx, 4, 4))

	referral, err := repo.GetReferrer(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, referral)
	assert.Equal(t, int64(2), referral.ReferrerID)

	// 没有推荐人的用户返回 nil
	referral, err = repo.GetReferrer(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, referral)
}

func TestTierDefaultsToZero(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewReferralRepository(db)
	ctx := context.Background()

	level, err := repo.GetTier(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, level)

	require.NoError(t, db.Create(&model.UnilevelTier{UserID: 1, Level: 4}).Error)
	level, err = repo.GetTier(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, level)
}

func TestCartMarkConsumedGuardsConcurrency(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewCartRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.CartLine{
		UserID: 1, ProductID: 100, Quantity: 1, UnitPrice: 500, Selected: true,
	}).Error)

	lines, err := repo.ListSelected(ctx, nil, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	require.NoError(t, repo.MarkConsumed(ctx, nil, []int64{lines[0].ID}))

	// 已消费的行不能再次消费：模拟并发下单的第二个事务
	err = repo.MarkConsumed(ctx, nil, []int64{lines[0].ID})
	require.ErrorIs(t, err, ledger.ErrConcurrentModification)

	lines, err = repo.ListSelected(ctx, nil, 1)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
