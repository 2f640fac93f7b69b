package model

import (
	"time"
)

// UserBalance 用户余额表
//
// 用户目录本身由外部系统维护，这里只托管四个余额字段。
// 四个字段全部 ≥ 0，且只能由 LedgerService / PointsService 写入；
// 每次变动都伴随恰好一条 FlowEntry 或 PointsEntry
type UserBalance struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	MemberPoints        int64     `gorm:"not null;default:0" json:"member_points"`
	MerchantPoints      int64     `gorm:"not null;default:0" json:"merchant_points"`
	WithdrawableBalance int64     `gorm:"not null;default:0" json:"withdrawable_balance"`
	PromotionBalance    int64     `gorm:"not null;default:0" json:"promotion_balance"`
	Version             int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserBalance) TableName() string {
	return "user_balance"
}
