package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"heritage-atlas/internal/config"
	"heritage-atlas/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxAttempts = 3

type forwardedForKey struct{}

// WithForwardedFor makes requests made with ctx carry ip as X-Forwarded-For,
// so the API limits each visitor rather than the web front as a whole.
func WithForwardedFor(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, forwardedForKey{}, ip)
}

// Client calls the Heritage Atlas verification API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	logger      *zap.Logger
}

// New creates a client for cfg.BaseURL. cfg.RateLimit is in requests per
// second; zero disables limiting.
func New(cfg config.APIClientConfig, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter: rate.NewLimiter(limit, 5),
		backoff:     exponentialBackoff,
		logger:      logger,
	}
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500<<(attempt-1)) * time.Millisecond
}

// VerifyProduct looks up a verification code. Unknown codes come back as an
// *APIError with status 404.
func (c *Client) VerifyProduct(ctx context.Context, code string) (*domain.VerificationResponse, error) {
	var resp domain.VerificationResponse
	if err := c.get(ctx, "/api/products/verify/"+url.PathEscape(code), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type productEnvelope struct {
	Success bool            `json:"success"`
	Product *domain.Product `json:"product"`
}

// GetProduct fetches a product by its identifier.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var resp productEnvelope
	if err := c.get(ctx, "/api/products/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	if resp.Product == nil {
		return nil, &APIError{StatusCode: 0}
	}
	return resp.Product, nil
}

// get retries transport errors and 5xx responses. 4xx responses are final.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	reqURL := c.baseURL + path

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.backoff(attempt-1)); err != nil {
				return err
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		status, body, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("API request failed",
				zap.String("url", reqURL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		if status >= http.StatusInternalServerError {
			c.logger.Warn("API server error",
				zap.String("url", reqURL),
				zap.Int("attempt", attempt),
				zap.Int("status", status),
			)
			lastErr = &APIError{StatusCode: status, Detail: parseDetail(body)}
			continue
		}

		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return &APIError{StatusCode: status, Detail: parseDetail(body)}
		}

		if err := json.Unmarshal(body, out); err != nil {
			c.logger.Warn("Malformed API response", zap.String("url", reqURL), zap.Error(err))
			return &APIError{StatusCode: 0}
		}
		return nil
	}

	c.logger.Error("All API attempts failed", zap.String("url", reqURL), zap.Error(lastErr))
	return lastErr
}

func (c *Client) doRequest(ctx context.Context, reqURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "HeritageAtlas-Web/1.0")
	if ip, ok := ctx.Value(forwardedForKey{}).(string); ok {
		req.Header.Set("X-Forwarded-For", ip)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to call API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
