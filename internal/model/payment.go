package model

import (
	"fmt"
	"strings"
	"time"
)

// PaymentStatus 支付状态：PENDING -> SUCCESS | FAILED，终态不可再变。
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// Payment 支付记录。order_id 与 amount 在整个生命周期内固定。
type Payment struct {
	ID        uint      `gorm:"column:payment_id;primarykey" json:"payment_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Status        PaymentStatus `gorm:"column:payment_status;size:16;not null;index" json:"status"`
	OrderID       string        `gorm:"size:36;not null;index" json:"order_id"`
	Amount        float64       `gorm:"not null" json:"amount"`
	TransactionID string        `gorm:"size:64;uniqueIndex" json:"transaction_id"`
	PaymentMode   string        `gorm:"size:32" json:"payment_mode,omitempty"`
}

func (Payment) TableName() string { return "payments" }

// Validate 支付执行前的最小校验。
func (p Payment) Validate() error {
	if p.Amount <= 0 {
		return invalid("amount", "must be > 0")
	}
	if strings.TrimSpace(p.OrderID) == "" {
		return invalid("order_id", "is required")
	}
	return nil
}

// Settle 将支付从 PENDING 推进到终态，并一次性写入交易号。
func (p *Payment) Settle(status PaymentStatus, transactionID string) error {
	if p.Status != "" && p.Status != PaymentPending {
		return fmt.Errorf("payment already settled as %s", p.Status)
	}
	if !status.Terminal() {
		return fmt.Errorf("settle to non-terminal status %q", status)
	}
	if transactionID == "" {
		return fmt.Errorf("transaction id is required")
	}
	p.Status = status
	p.TransactionID = transactionID
	return nil
}
