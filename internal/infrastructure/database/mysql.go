package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"fundledger/internal/config"
	"fundledger/internal/model"
	"fundledger/internal/repository"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 连接
func InitMySQL(cfg *config.MySQLConfig) *gorm.DB {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("连接 MySQL 失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("获取底层 DB 失败: %v", err)
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		log.Fatalf("自动迁移表结构失败: %v", err)
	}

	DB = db
	log.Println("MySQL 连接成功")
	return db
}

// Migrate 迁移全部表结构，测试用的内存库也走这份清单
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.FundAccount{},
		&model.FlowEntry{},
		&model.FlowReversal{},
		&model.PointsEntry{},
		&model.PointsReversal{},
		&model.UserBalance{},
		&model.Order{},
		&model.OrderItem{},
		&model.Refund{},
		&model.PendingReward{},
		&model.Withdrawal{},
		&model.Coupon{},
		&model.SubsidyRecord{},
		&model.Referral{},
		&model.UnilevelTier{},
		&model.CartLine{},
		&model.OutboxMessage{},
	)
}

// EnsureFundAccounts 启动引导：建出配置清单里的全部资金池
// 显式引导而不是首次调用时建表，保证余额来源清晰可审计
func EnsureFundAccounts(ctx context.Context, db *gorm.DB) error {
	return repository.NewAccountRepository(db).EnsureAll(ctx, model.AllPools)
}
