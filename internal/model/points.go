package model

import (
	"time"
)

// 积分种类
const (
	PointsKindMember   = "member"   // 会员积分
	PointsKindMerchant = "merchant" // 商家积分
)

// PointsEntry 积分流水表
// 与资金流水同构：只追加、带因果、记录变动后余额
type PointsEntry struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64     `gorm:"index;not null" json:"user_id"`
	Kind         string    `gorm:"type:varchar(20);not null" json:"kind"`
	ChangeAmount int64     `gorm:"not null" json:"change_amount"` // 正数增加，负数扣减
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`
	CauseType    string    `gorm:"type:varchar(20);not null" json:"cause_type"`
	CauseID      string    `gorm:"type:varchar(64);index;not null" json:"cause_id"`
	Reason       string    `gorm:"type:varchar(256)" json:"reason"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PointsEntry) TableName() string {
	return "points_entry"
}

// PointsReversal 积分冲正标记表，语义同 FlowReversal
type PointsReversal struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CauseID   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"cause_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PointsReversal) TableName() string {
	return "points_reversal"
}
