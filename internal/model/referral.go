package model

import (
	"time"
)

// Referral 推荐关系表
//
// 有向边：user → referrer，每个用户最多一条。
// 两侧都按索引可查，不在用户实体上放双向指针
type Referral struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	ReferrerID int64     `gorm:"index;not null" json:"referrer_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Referral) TableName() string {
	return "user_referral"
}

// UnilevelTier 层级表
//
// 由外部层级系统维护，核心只读：
// 下单时决定团队奖励资格，分红时决定分红资格与额度
type UnilevelTier struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Level     int       `gorm:"not null;default:0" json:"level"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UnilevelTier) TableName() string {
	return "unilevel_tier"
}
