// Command loadtest drives one flash sale product with many concurrent buyers
// and checks the server never sells more than the configured stock.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type LoadTestConfig struct {
	BaseURL       string
	Buyers        int
	Stock         int
	UnitsPerBuyer int
	MaxPerUser    int
	Timeout       time.Duration
}

type TestResult struct {
	Successful    int64
	UnitsAccepted int64
	Errors        map[string]int64
	ResponseTimes []time.Duration
	mutex         sync.Mutex
}

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
}

type saleData struct {
	ID           string `json:"id"`
	SoldQuantity int    `json:"sold_quantity"`
	TotalSales   int64  `json:"total_sales"`
	Products     []struct {
		ID string `json:"id"`
	} `json:"products"`
}

type receiptData struct {
	Units int `json:"units"`
}

type LoadTester struct {
	config *LoadTestConfig
	result *TestResult
	client *http.Client
}

func NewLoadTester(config *LoadTestConfig) *LoadTester {
	return &LoadTester{
		config: config,
		result: &TestResult{Errors: make(map[string]int64)},
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        1000,
				MaxIdleConnsPerHost: 200,
				MaxConnsPerHost:     400,
			},
		},
	}
}

func main() {
	config := &LoadTestConfig{}
	flag.StringVar(&config.BaseURL, "url", "http://localhost:8080", "Base URL of the flash sale engine")
	flag.IntVar(&config.Buyers, "buyers", 1000, "Number of concurrent buyers")
	flag.IntVar(&config.Stock, "stock", 100, "Stock of the product under test")
	flag.IntVar(&config.UnitsPerBuyer, "units", 1, "Units each buyer requests")
	flag.IntVar(&config.MaxPerUser, "max-per-user", 1, "Per-buyer limit on the product")
	flag.DurationVar(&config.Timeout, "timeout", 30*time.Second, "Per-request timeout")
	flag.Parse()

	tester := NewLoadTester(config)
	ctx := context.Background()

	saleID, productID, err := tester.createSale(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create sale: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created flash sale %s (product %s, stock %d)\n", saleID, productID, config.Stock)

	start := time.Now()
	tester.run(ctx, saleID, productID)
	elapsed := time.Since(start)

	final, err := tester.fetchSale(ctx, saleID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch sale: %v\n", err)
		os.Exit(1)
	}

	tester.report(elapsed, final)

	if final.SoldQuantity > config.Stock || int64(final.SoldQuantity) != tester.result.UnitsAccepted {
		fmt.Println("FAIL: sold quantity does not match accepted purchases")
		os.Exit(1)
	}
	fmt.Println("PASS")
}

func (lt *LoadTester) createSale(ctx context.Context) (string, string, error) {
	now := time.Now().UTC()
	body := map[string]interface{}{
		"title":      fmt.Sprintf("Load test %s", now.Format(time.RFC3339)),
		"start_date": now.Add(-time.Minute),
		"end_date":   now.Add(time.Hour),
		"products": []map[string]interface{}{{
			"product_id":            "loadtest-product",
			"name":                  "Load test product",
			"original_price":        "100",
			"sale_price":            "10",
			"stock_quantity":        lt.config.Stock,
			"max_quantity_per_user": lt.config.MaxPerUser,
		}},
	}

	var created saleData
	if _, err := lt.do(ctx, http.MethodPost, "/flash-sales", body, &created); err != nil {
		return "", "", err
	}
	if len(created.Products) == 0 {
		return "", "", fmt.Errorf("sale %s has no products", created.ID)
	}
	return created.ID, created.Products[0].ID, nil
}

func (lt *LoadTester) fetchSale(ctx context.Context, saleID string) (*saleData, error) {
	var s saleData
	if _, err := lt.do(ctx, http.MethodGet, "/flash-sales/"+saleID, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (lt *LoadTester) run(ctx context.Context, saleID, productID string) {
	path := fmt.Sprintf("/flash-sales/%s/products/%s/purchase", saleID, productID)

	var wg sync.WaitGroup
	ready := make(chan struct{})

	for i := 0; i < lt.config.Buyers; i++ {
		wg.Add(1)
		go func(buyer int) {
			defer wg.Done()
			<-ready

			body := map[string]interface{}{
				"buyer_id":        fmt.Sprintf("buyer-%d", buyer),
				"quantity":        lt.config.UnitsPerBuyer,
				"idempotency_key": fmt.Sprintf("loadtest-%s-%d", saleID, buyer),
			}

			var receipt receiptData
			start := time.Now()
			code, err := lt.do(ctx, http.MethodPost, path, body, &receipt)
			lt.record(time.Since(start), receipt.Units, code, err)
		}(i)
	}

	close(ready)
	wg.Wait()
}

func (lt *LoadTester) record(duration time.Duration, units int, code string, err error) {
	lt.result.mutex.Lock()
	defer lt.result.mutex.Unlock()

	lt.result.ResponseTimes = append(lt.result.ResponseTimes, duration)
	if err == nil {
		atomic.AddInt64(&lt.result.Successful, 1)
		atomic.AddInt64(&lt.result.UnitsAccepted, int64(units))
		return
	}
	if code == "" {
		code = err.Error()
	}
	lt.result.Errors[code]++
}

// do sends body as JSON and decodes the data field of the envelope into out.
// On a non-2xx response it returns the machine-readable error code.
func (lt *LoadTester) do(ctx context.Context, method, path string, body, out interface{}) (string, error) {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, lt.config.BaseURL+path, &payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := lt.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("decode %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return env.Code, fmt.Errorf("%s %s: status %d (%s)", method, path, resp.StatusCode, env.Code)
	}

	if out != nil && len(env.Data) > 0 {
		return "", json.Unmarshal(env.Data, out)
	}
	return "", nil
}

func (lt *LoadTester) report(elapsed time.Duration, final *saleData) {
	times := lt.result.ResponseTimes
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	percentile := func(p float64) time.Duration {
		if len(times) == 0 {
			return 0
		}
		idx := int(float64(len(times)-1) * p)
		return times[idx]
	}

	fmt.Println("==== Load test results ====")
	fmt.Printf("Buyers:            %d\n", lt.config.Buyers)
	fmt.Printf("Duration:          %s\n", elapsed)
	fmt.Printf("Throughput:        %.1f req/s\n", float64(len(times))/elapsed.Seconds())
	fmt.Printf("Successful:        %d\n", lt.result.Successful)
	fmt.Printf("Units accepted:    %d\n", lt.result.UnitsAccepted)
	fmt.Printf("Units sold (API):  %d / %d\n", final.SoldQuantity, lt.config.Stock)
	fmt.Printf("Total sales (API): %d\n", final.TotalSales)
	fmt.Printf("P50 / P95 / P99:   %s / %s / %s\n", percentile(0.50), percentile(0.95), percentile(0.99))

	if len(lt.result.Errors) > 0 {
		fmt.Println("Rejections:")
		for code, n := range lt.result.Errors {
			fmt.Printf("  %-24s %d\n", code, n)
		}
	}
}
