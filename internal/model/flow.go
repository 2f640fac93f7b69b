package model

import (
	"time"
)

// 流水因果类型：每笔资金变动必须挂在一个业务事件上
const (
	CauseOrder      = "ORDER"       // 订单分账
	CauseRefund     = "REFUND"      // 退款冲正
	CauseReward     = "REWARD"      // 奖励发放
	CauseWithdrawal = "WITHDRAWAL"  // 提现
	CauseSubsidy    = "SUBSIDY"     // 周补贴
	CauseDividend   = "DIVIDEND"    // 分红
	CauseManualFund = "MANUAL_FUND" // 管理员注资
	CauseClearPool  = "CLEAR_POOL"  // 清空资金池
)

// 用户侧余额字段，作为 FlowEntry.AccountType 的取值之一
// 积分字段不在此列：积分走 PointsEntry 独立日志
const (
	FieldWithdrawable = "withdrawable_balance" // 可提现余额
	FieldPromotion    = "promotion_balance"    // 推广余额
)

// FlowEntry 资金流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 流水是对账与冲正的唯一依据
// 2. 每笔流水必须携带因果（cause_type + cause_id）—— 退款按因果精确冲正
// 3. 记录变动后余额 —— 余额可按流水顺序重放校验
type FlowEntry struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FlowNo       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"flow_no"`
	AccountType  string    `gorm:"type:varchar(64);index;not null" json:"account_type"` // 资金池名或用户余额字段名
	UserID       int64     `gorm:"index" json:"user_id"`                                // 用户侧流水的用户ID，资金池流水为 0
	ChangeAmount int64     `gorm:"not null" json:"change_amount"`                       // 正数入账，负数出账
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`
	CauseType    string    `gorm:"type:varchar(20);not null" json:"cause_type"`
	CauseID      string    `gorm:"type:varchar(64);index;not null" json:"cause_id"`
	Remark       string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (FlowEntry) TableName() string {
	return "flow_entry"
}

// FlowReversal 资金冲正标记表
//
// 每个因果ID最多冲正一次：唯一索引保证 reverse 的幂等性，
// 第二次冲正在插入标记时发现冲突，直接按无操作返回
type FlowReversal struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CauseID   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"cause_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (FlowReversal) TableName() string {
	return "flow_reversal"
}
