package model

import (
	"time"
)

// CartLine 购物车行
//
// 购物车本身由外部系统维护；核心只在从购物车下单时
// 把选中的行标记为已消费，其余字段不写
type CartLine struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	ProductID int64     `gorm:"not null" json:"product_id"`
	SkuID     int64     `json:"sku_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"` // 当前售价，下单时快照进 OrderItem
	Selected  bool      `gorm:"not null;default:false" json:"selected"`
	Consumed  bool      `gorm:"not null;default:false;index" json:"consumed"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CartLine) TableName() string {
	return "cart_line"
}
