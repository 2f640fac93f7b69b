package model

import (
	"time"
)

const (
	CouponStatusActive = "ACTIVE"
	CouponStatusUsed   = "USED"
)

const (
	CouponTypeSubsidy = "subsidy" // 周补贴发放
	CouponTypeManual  = "manual"  // 管理员直接发放
)

// Coupon 优惠券
// active → used 只允许发生一次
type Coupon struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64      `gorm:"index;not null" json:"user_id"`
	Amount    int64      `gorm:"not null" json:"amount"`
	Type      string     `gorm:"type:varchar(20);not null" json:"type"`
	Status    string     `gorm:"type:varchar(20);index;not null" json:"status"`
	IssuedAt  time.Time  `gorm:"autoCreateTime" json:"issued_at"`
	UsedAt    *time.Time `json:"used_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Coupon) TableName() string {
	return "coupon"
}
