package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderValidate(t *testing.T) {
	cases := []struct {
		name  string
		order Order
		field string
	}{
		{"ok", Order{Name: "Widget", Qty: 2, Price: 10}, ""},
		{"blank name", Order{Name: "  ", Qty: 1, Price: 1}, "name"},
		{"zero qty", Order{Name: "Widget", Qty: 0, Price: 1}, "qty"},
		{"negative price", Order{Name: "Widget", Qty: 1, Price: -5}, "price"},
		{"zero price", Order{Name: "Widget", Qty: 1, Price: 0}, "price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.order.Validate()
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestOrderTotal(t *testing.T) {
	assert.Equal(t, 20.0, Order{Qty: 2, Price: 10}.Total())
	// 0.1 * 3 用 float 直接乘会得到 0.30000000000000004
	assert.Equal(t, 0.3, Order{Qty: 3, Price: 0.1}.Total())
}

func TestOrderBeforeSaveDefaults(t *testing.T) {
	o := &Order{Name: "Widget", Qty: 4, Price: 2.5}
	require.NoError(t, o.BeforeSave(nil))
	assert.Equal(t, OrderPending, o.Status)
	assert.Equal(t, 10.0, o.TotalValue)
}

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderPending.CanTransitionTo(OrderConfirmed))
	assert.True(t, OrderPending.CanTransitionTo(OrderCancelled))
	assert.False(t, OrderPending.CanTransitionTo(OrderPending))
	assert.False(t, OrderConfirmed.CanTransitionTo(OrderCancelled))
	assert.False(t, OrderCancelled.CanTransitionTo(OrderConfirmed))
}
