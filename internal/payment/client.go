package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"order_payment/internal/discovery"
	"order_payment/internal/model"
)

// ErrRejected 支付服务以 400 拒绝请求（参数问题），不计入熔断失败。
var ErrRejected = errors.New("payment rejected")

// Picker 按逻辑服务名选出一个实例。
type Picker interface {
	Pick(ctx context.Context, service string) (discovery.Instance, error)
}

// HTTPClient 通过服务发现调用远程 POST /payment/doPayment。
type HTTPClient struct {
	picker  Picker
	service string
	http    *http.Client
}

func NewHTTPClient(picker Picker, service string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPClient{picker: picker, service: service, http: hc}
}

func (c *HTTPClient) DoPayment(ctx context.Context, p model.Payment) (*model.Payment, error) {
	inst, err := c.picker.Pick(ctx, c.service)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inst.URL+"/payment/doPayment", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrRejected, string(body))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%s %s: status=%d body=%s", c.service, inst.URL, resp.StatusCode, string(body))
	}

	var out model.Payment
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	return &out, nil
}
