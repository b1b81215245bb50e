package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order_payment/internal/model"

	"gorm.io/gorm"
)

// OrderStore 独占 orders 表。
type OrderStore struct {
	db *gorm.DB
}

func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) Migrate() error {
	return s.db.AutoMigrate(&model.Order{})
}

// Create 写入一条订单，created/updated 时间由 gorm 填充。
func (s *OrderStore) Create(ctx context.Context, o *model.Order) error {
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order %s: %w", o.ID, ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *OrderStore) List(ctx context.Context) ([]model.Order, error) {
	var list []model.Order
	if err := s.db.WithContext(ctx).Order("created_at").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateStatus 条件更新：只有当前为 PENDING 的订单才能迁移，避免并发覆盖终态。
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, to model.OrderStatus) (*model.Order, error) {
	if !model.OrderPending.CanTransitionTo(to) {
		return nil, fmt.Errorf("to %s: %w", to, ErrInvalidTransition)
	}
	res := s.db.WithContext(ctx).Session(&gorm.Session{SkipHooks: true}).
		Model(&model.Order{}).
		Where("id = ? AND order_status = ?", id, model.OrderPending).
		Updates(map[string]any{"order_status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return o, fmt.Errorf("order %s is %s: %w", id, o.Status, ErrInvalidTransition)
	}
	return o, nil
}
