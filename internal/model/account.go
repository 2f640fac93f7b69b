package model

import (
	"time"
)

// 系统资金池
// 资金池在系统初始化时一次性创建，之后只能通过 LedgerService 变更余额
const (
	PoolPlatform  = "platform_pool"  // 平台收入池
	PoolSubsidy   = "subsidy_pool"   // 周补贴池
	PoolDividend  = "dividend_pool"  // 分红池
	PoolWelfare   = "welfare_pool"   // 公益基金池
	PoolPromotion = "promotion_pool" // 推广奖励池
)

// AllPools 启动引导时创建的资金池清单
var AllPools = []string{
	PoolPlatform,
	PoolSubsidy,
	PoolDividend,
	PoolWelfare,
	PoolPromotion,
}

// FundAccount 资金池账户表
//
// 余额为最小货币单位（分）的非负整数，绝不使用浮点。
// 余额是流水表的派生投影：任何时刻都必须能通过重放 FlowEntry 重建
type FundAccount struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	Version   int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FundAccount) TableName() string {
	return "fund_account"
}
