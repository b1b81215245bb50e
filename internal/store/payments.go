package store

import (
	"context"
	"errors"
	"fmt"

	"order_payment/internal/model"

	"gorm.io/gorm"
)

// PaymentStore 独占 payments 表，主键由数据库自增分配。
type PaymentStore struct {
	db *gorm.DB
}

func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

func (s *PaymentStore) Migrate() error {
	return s.db.AutoMigrate(&model.Payment{})
}

// Create 只接受已结算的支付，保证每次尝试恰好落库一次。
func (s *PaymentStore) Create(ctx context.Context, p *model.Payment) error {
	if !p.Status.Terminal() {
		return fmt.Errorf("payment for order %s not settled", p.OrderID)
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction %s: %w", p.TransactionID, ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *PaymentStore) Get(ctx context.Context, id uint) (*model.Payment, error) {
	var p model.Payment
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *PaymentStore) List(ctx context.Context) ([]model.Payment, error) {
	var list []model.Payment
	if err := s.db.WithContext(ctx).Order("payment_id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
