package shopify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tcgmx/storefront-core/pkg/errors"
)

// Client talks to the storefront AJAX API of a shop: /cart.js, /cart/add.js,
// /cart/change.js, /products.json and /variants/{id}.js. These endpoints are
// session-scoped, so the client carries a cookie-aware http.Client.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a storefront AJAX client
func NewClient(shopDomain string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Normalize shop domain - remove scheme and trailing slashes
	domain := shopDomain
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimSuffix(domain, "/")

	return &Client{
		baseURL: "https://" + domain,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// Shopify throttles the AJAX API per storefront session; 4 req/s with
		// a small burst stays well under the limit
		rateLimiter: rate.NewLimiter(rate.Limit(4), 8),
		logger:      logger,
	}
}

// NewClientWithBaseURL is used by tests to point the client at a mock server
func NewClientWithBaseURL(baseURL string, logger *zap.Logger) *Client {
	c := NewClient("placeholder.myshopify.com", 0, logger)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// do executes one request against the storefront and returns the raw body.
// Non-2xx statuses become ErrTransport; callers decide how to surface them.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Storefront request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, &errors.ErrTransport{Op: method + " " + path, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Storefront returned non-success status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", data),
		)
		return nil, &errors.ErrTransport{Op: method + " " + path, Status: resp.StatusCode}
	}

	return data, nil
}
