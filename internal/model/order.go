package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus 订单状态：PENDING -> CONFIRMED / CANCELLED
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order 订单。无论支付结果如何都会落库（save-always）。
type Order struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name       string      `gorm:"column:order_name;size:255;not null" json:"name"`
	Qty        int         `gorm:"column:quantity;not null" json:"qty"`
	Price      float64     `gorm:"not null" json:"price"`
	Status     OrderStatus `gorm:"column:order_status;size:16;not null;default:PENDING;index" json:"status"`
	CustomerID string      `gorm:"size:64;index" json:"customer_id,omitempty"`

	// TotalValue 只读派生值，不入库，由 hook 按 qty*price 计算。
	TotalValue float64 `gorm:"-" json:"total_value"`
}

func (Order) TableName() string { return "orders" }

// Total 用 decimal 计算 qty*price，避免浮点累乘误差。
func (o Order) Total() float64 {
	return decimal.NewFromFloat(o.Price).Mul(decimal.NewFromInt(int64(o.Qty))).InexactFloat64()
}

// Validate 校验下单草稿：名称非空、数量与单价为正。
func (o Order) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return invalid("name", "must not be blank")
	}
	if o.Qty <= 0 {
		return invalid("qty", "must be > 0")
	}
	if o.Price <= 0 {
		return invalid("price", "must be > 0")
	}
	return nil
}

func (o *Order) BeforeSave(*gorm.DB) error {
	if o.Status == "" {
		o.Status = OrderPending
	}
	o.TotalValue = o.Total()
	return nil
}

func (o *Order) AfterFind(*gorm.DB) error {
	o.TotalValue = o.Total()
	return nil
}

// CanTransitionTo 只允许从 PENDING 迁移到终态。
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	return s == OrderPending && (to == OrderConfirmed || to == OrderCancelled)
}
