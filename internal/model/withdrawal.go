package model

import (
	"time"
)

const (
	WithdrawalStatusPending  = "PENDING"
	WithdrawalStatusApproved = "APPROVED"
	WithdrawalStatusRejected = "REJECTED"
)

// Withdrawal 提现申请
//
// 申请时不冻结、不扣款；余额校验与扣减发生在审核通过的时刻
// （申请之后余额可能已经变化）。审核是一次性迁移
type Withdrawal struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalNo string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawal_no"`
	UserID       int64      `gorm:"index;not null" json:"user_id"`
	Amount       int64      `gorm:"not null" json:"amount"`
	Status       string     `gorm:"type:varchar(20);index;not null" json:"status"`
	AuditRemark  string     `gorm:"type:varchar(256)" json:"audit_remark"`
	ProcessedAt  *time.Time `json:"processed_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawal"
}
