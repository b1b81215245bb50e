package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"order_payment/internal/discovery"
	"order_payment/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientFor(url string) *HTTPClient {
	r := discovery.NewStaticResolver(nil).Set("payment-service", url)
	return NewHTTPClient(discovery.NewRoundRobin(r), "payment-service", nil)
}

func TestHTTPClientSettled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment/doPayment", r.URL.Path)

		var in model.Payment
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = 7
		in.Status = model.PaymentSuccess
		in.TransactionID = "abc-123"
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	p, err := clientFor(srv.URL).DoPayment(context.Background(), model.Payment{OrderID: "o-1", Amount: 20})
	require.NoError(t, err)
	assert.Equal(t, uint(7), p.ID)
	assert.Equal(t, "abc-123", p.TransactionID)
	assert.Equal(t, 20.0, p.Amount)
}

func TestHTTPClientRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":400,"msg":"amount must be > 0"}`))
	}))
	defer srv.Close()

	_, err := clientFor(srv.URL).DoPayment(context.Background(), model.Payment{OrderID: "o-1"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestHTTPClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := clientFor(srv.URL).DoPayment(context.Background(), model.Payment{OrderID: "o-1", Amount: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "status=500")
}

func TestHTTPClientNoInstances(t *testing.T) {
	c := NewHTTPClient(discovery.NewRoundRobin(discovery.NewStaticResolver(nil)), "payment-service", nil)
	_, err := c.DoPayment(context.Background(), model.Payment{OrderID: "o-1", Amount: 1})
	assert.ErrorIs(t, err, discovery.ErrNoInstances)
}
