package model

import (
	"time"
)

const (
	OrderStatusCreated     = "CREATED"      // 已创建（已结算分账，待支付确认）
	OrderStatusPendingShip = "PENDING_SHIP" // 待发货
	OrderStatusPendingRecv = "PENDING_RECV" // 待收货
	OrderStatusCompleted   = "COMPLETED"    // 已完成
	OrderStatusRefunded    = "REFUNDED"     // 已退款（终态标记）
)

const (
	RefundStatusNone     = "NONE"
	RefundStatusPending  = "PENDING"
	RefundStatusRefunded = "REFUNDED"
)

// ValidStatusTransitions 订单主状态机
// 退款是独立的 refund_status 叠加状态，不走这张表；
// 进入 REFUNDED 终态由退款审批统一驱动
var ValidStatusTransitions = map[string][]string{
	OrderStatusCreated:     {OrderStatusPendingShip, OrderStatusRefunded},
	OrderStatusPendingShip: {OrderStatusPendingRecv, OrderStatusRefunded},
	OrderStatusPendingRecv: {OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusCompleted:   {OrderStatusRefunded},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Order 订单表
//
// 商品单价在下单时刻快照到 OrderItem，之后商品改价不影响已有订单。
// 金额为最小货币单位；PointsApplied 为下单时抵扣的会员积分数
type Order struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo           string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	UserID            int64      `gorm:"index;not null" json:"user_id"`
	TotalAmount       int64      `gorm:"not null" json:"total_amount"`    // 商品总额
	PointsApplied     int64      `gorm:"not null" json:"points_applied"`  // 抵扣积分数
	PayableAmount     int64      `gorm:"not null" json:"payable_amount"`  // 总额减去积分抵扣后的应付额
	Status            string     `gorm:"type:varchar(20);index;not null" json:"status"`
	RefundStatus      string     `gorm:"type:varchar(20);index;not null;default:NONE" json:"refund_status"`
	TrackingNumber    string     `gorm:"type:varchar(64)" json:"tracking_number"`
	AutoReceiveAt     *time.Time `json:"auto_receive_at"` // 发货时间 + 配置天数，由后台任务代为确认收货
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单明细
// UnitPrice 为下单时的价格快照，不引用在售价格
type OrderItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64     `gorm:"index;not null" json:"order_id"`
	ProductID int64     `gorm:"not null" json:"product_id"`
	SkuID     int64     `json:"sku_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_item"
}

const (
	RefundPending  = "PENDING"
	RefundSuccess  = "SUCCESS"
	RefundRejected = "REJECTED"
)

// Refund 退款单
//
// 退款成功时按订单因果精确冲正原始流水，绝不重算金额。
// 一个订单同一时刻最多存在一笔 pending 或 success 的退款
type Refund struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RefundNo    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"refund_no"`
	OrderNo     string     `gorm:"type:varchar(64);index;not null" json:"order_no"`
	UserID      int64      `gorm:"index;not null" json:"user_id"`
	Status      string     `gorm:"type:varchar(20);index;not null" json:"status"`
	Reason      string     `gorm:"type:varchar(256)" json:"reason"`
	ProcessedAt *time.Time `json:"processed_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Refund) TableName() string {
	return "refund"
}
