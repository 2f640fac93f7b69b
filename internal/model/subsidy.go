package model

import (
	"time"
)

// SubsidyRecord 周补贴发放记录
// 每个用户每批次一条，关联发放的优惠券与扣减的积分
type SubsidyRecord struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchID        string    `gorm:"type:varchar(64);index;not null" json:"batch_id"`
	UserID         int64     `gorm:"index;not null" json:"user_id"`
	SubsidyAmount  int64     `gorm:"not null" json:"subsidy_amount"`
	PointsDeducted int64     `gorm:"not null" json:"points_deducted"`
	CouponID       int64     `gorm:"not null" json:"coupon_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SubsidyRecord) TableName() string {
	return "subsidy_record"
}
