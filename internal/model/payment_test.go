package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentValidate(t *testing.T) {
	assert.NoError(t, Payment{OrderID: "o-1", Amount: 10}.Validate())

	err := Payment{OrderID: "o-1", Amount: 0}.Validate()
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	err = Payment{OrderID: " ", Amount: 1}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_id")
}

func TestPaymentSettle(t *testing.T) {
	p := Payment{Status: PaymentPending, OrderID: "o-1", Amount: 10}
	require.NoError(t, p.Settle(PaymentSuccess, "tx-1"))
	assert.Equal(t, PaymentSuccess, p.Status)
	assert.Equal(t, "tx-1", p.TransactionID)

	// 终态不可再变
	assert.Error(t, p.Settle(PaymentFailed, "tx-2"))
	assert.Equal(t, "tx-1", p.TransactionID)
}

func TestPaymentSettleRejectsBadInput(t *testing.T) {
	p := Payment{}
	assert.Error(t, p.Settle(PaymentPending, "tx-1"))
	assert.Error(t, p.Settle(PaymentFailed, ""))
	assert.NoError(t, p.Settle(PaymentFailed, "tx-1"))
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentPending.Terminal())
	assert.True(t, PaymentSuccess.Terminal())
	assert.True(t, PaymentFailed.Terminal())
}
