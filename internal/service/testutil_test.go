package service

import (
	"context"
	"fmt"
	"testing"

	"fundledger/internal/config"
	"fundledger/internal/infrastructure/database"
	"fundledger/internal/model"
	"fundledger/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存库，迁移走生产同一份清单
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.EnsureFundAccounts(context.Background(), db))

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Business: config.DefaultBusiness(),
	}
}

// fundPool 测试前置：直接给资金池注资
func fundPool(t *testing.T, db *gorm.DB, pool string, amount int64) {
	t.Helper()
	svc := NewLedgerService(db)
	require.NoError(t, svc.Credit(context.Background(), pool, amount,
		model.CauseManualFund, fmt.Sprintf("seed-%s-%s", t.Name(), pool), "测试注资"))
}

// givePoints 测试前置：给用户发会员积分
func givePoints(t *testing.T, db *gorm.DB, userID, points int64) {
	t.Helper()
	svc := NewPointsService(db)
	require.NoError(t, svc.Adjust(context.Background(), userID, model.PointsKindMember, points,
		model.CauseManualFund, fmt.Sprintf("seed-points-%s-%d", t.Name(), userID), "测试发积分"))
}

func poolBalance(t *testing.T, db *gorm.DB, pool string) int64 {
	t.Helper()
	account, err := repository.NewAccountRepository(db).GetByName(context.Background(), pool)
	require.NoError(t, err)
	return account.Balance
}

func userBalance(t *testing.T, db *gorm.DB, userID int64) *model.UserBalance {
	t.Helper()
	user, err := repository.NewUserRepository(db).GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	return user
}
