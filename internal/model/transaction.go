package model

const (
	// TransactionFailed 是支付腿未完成时返回的交易号哨兵值。
	TransactionFailed = "FAILED"

	MessagePaymentSuccess = "payment successful, order placed"
	MessagePaymentFailure = "payment failure, order added to cart"
)

// TransactionRequest 一次下单请求：订单草稿 + 支付草稿，不落库。
type TransactionRequest struct {
	Order   Order   `json:"order"`
	Payment Payment `json:"payment"`
}

// TransactionResponse 下单的合并结果。
type TransactionResponse struct {
	Order         Order   `json:"order"`
	Amount        float64 `json:"amount"`
	TransactionID string  `json:"transaction_id"`
	Message       string  `json:"message"`
}
