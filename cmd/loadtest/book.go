package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"order_payment/internal/model"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status  int
	Message string
	Err     error
}

var bookOpts struct {
	base        string
	users       int
	concurrency int
	rps         float64
	sameUser    int
	timeout     time.Duration
}

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Place orders concurrently and summarize payment outcomes",
	Long: `Runs two rounds against POST /order/bookOrder:
- distinct customers, one order each
- one customer repeating orders (exercises the booking rate limit)`,
	RunE: runBook,
}

func init() {
	f := bookCmd.Flags()
	f.StringVar(&bookOpts.base, "base", "http://localhost:8080", "order service or gateway base url")
	f.IntVar(&bookOpts.users, "users", 200, "distinct customers")
	f.IntVar(&bookOpts.concurrency, "c", 50, "max concurrency")
	f.Float64Var(&bookOpts.rps, "rps", 0, "client side request rate limit, 0 = unlimited")
	f.IntVar(&bookOpts.sameUser, "same-user", 50, "requests for the single-customer round, 0 = skip")
	f.DurationVar(&bookOpts.timeout, "timeout", 5*time.Second, "per request timeout")
}

func runBook(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	client := &http.Client{Timeout: bookOpts.timeout}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if bookOpts.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(bookOpts.rps), 1)
	}

	fmt.Printf("start booking test: users=%d concurrency=%d rps=%v\n", bookOpts.users, bookOpts.concurrency, bookOpts.rps)
	results := runBookings(ctx, client, limiter, bookOpts.users, bookOpts.concurrency, func(i int) string {
		return fmt.Sprintf("customer-%d", i+1)
	})
	printSummary("distinct_customers", results)

	if bookOpts.sameUser > 0 {
		fmt.Printf("\nstart rate limit test: same customer, %d requests\n", bookOpts.sameUser)
		results = runBookings(ctx, client, limiter, bookOpts.sameUser, bookOpts.concurrency, func(int) string {
			return "customer-10001"
		})
		printSummary("same_customer", results)
	}
	return nil
}

func runBookings(ctx context.Context, client *http.Client, limiter *rate.Limiter, total, concurrency int, customer func(int) string) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		if err := limiter.Wait(ctx); err != nil {
			results[i] = Result{Err: err}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			req := model.TransactionRequest{
				Order:   model.Order{Name: "Widget", Qty: 2, Price: 10, CustomerID: customer(idx)},
				Payment: model.Payment{PaymentMode: "CARD"},
			}
			results[idx] = bookOnce(ctx, client, bookOpts.base, req)
		}(i)
	}

	wg.Wait()
	return results
}

func bookOnce(ctx context.Context, client *http.Client, baseURL string, req model.TransactionRequest) Result {
	b, _ := json.Marshal(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/order/bookOrder", bytes.NewReader(b))
	if err != nil {
		return Result{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	res := Result{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusOK {
		var out model.TransactionResponse
		if err := json.Unmarshal(body, &out); err == nil {
			res.Message = out.Message
		}
	}
	return res
}

// printSummary 聚合输出状态码分布与下单结果分布。
func printSummary(name string, results []Result) {
	codes := map[int]int{}
	messages := map[string]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		codes[r.Status]++
		if r.Message != "" {
			messages[r.Message]++
		}
	}

	fmt.Printf("[%s] http status summary:\n", name)
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	sort.Ints(keys)
	for _, code := range keys {
		fmt.Printf("  %d -> %d\n", code, codes[code])
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
	for _, msg := range []string{model.MessagePaymentSuccess, model.MessagePaymentFailure} {
		fmt.Printf("  %q -> %d\n", msg, messages[msg])
	}
}
