package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yuzvak/flashsale-engine/internal/application/ports"
	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
)

// HTTPClient reads products from the catalog service at GET {base}/products/{id}.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	maxElapsed time.Duration
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxElapsed: 3 * timeout,
	}
}

func (c *HTTPClient) GetProduct(ctx context.Context, productID string) (*ports.CatalogProduct, error) {
	endpoint := c.baseURL + "/products/" + url.PathEscape(productID)

	var product ports.CatalogProduct
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s", domainErrors.ErrCatalogProductNotFound, productID))
		case resp.StatusCode >= 500:
			return fmt.Errorf("catalog returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("catalog returned %d", resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode catalog product: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = c.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}

	if product.ID == "" {
		product.ID = productID
	}
	return &product, nil
}
