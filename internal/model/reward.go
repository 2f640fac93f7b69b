package model

import (
	"time"
)

const (
	RewardKindReferral = "referral" // 直接推荐奖励
	RewardKindTeam     = "team"     // 团队层级奖励
)

const (
	RewardStatusPending  = "PENDING"
	RewardStatusApproved = "APPROVED"
	RewardStatusRejected = "REJECTED"
)

// PendingReward 待审核奖励
//
// 下单时生成，人工审核后才影响任何余额。
// 审核是一次性迁移：已出终态的记录不允许再次审核
type PendingReward struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo     string     `gorm:"type:varchar(64);index;not null" json:"order_no"`
	UserID      int64      `gorm:"index;not null" json:"user_id"` // 受益人
	Kind        string     `gorm:"type:varchar(20);not null" json:"kind"`
	Layer       int        `gorm:"not null;default:0" json:"layer"` // 受益人在推荐链上的层数，直接推荐人为 1
	Amount      int64      `gorm:"not null" json:"amount"`
	Status      string     `gorm:"type:varchar(20);index;not null" json:"status"`
	ProcessedAt *time.Time `json:"processed_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PendingReward) TableName() string {
	return "pending_reward"
}
