// Package stockbit fetches market detector, orderbook and instrument feeds
// from the Stockbit API and turns them into domain values.
package stockbit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rewired-gh/bandarscope/internal/logger"
)

const maxBodyBytes = 8 << 20

// Client provides access to the Stockbit API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cfg        ClientConfig
}

// ClientConfig tunes retries and the market detector query.
type ClientConfig struct {
	MaxRetries      int
	RetryDelayBase  time.Duration
	TransactionType string
	MarketBoard     string
	InvestorType    string
	Limit           int
}

// StatusError is returned for non-retryable upstream responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a new Stockbit client
func NewClient(baseURL, token string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase < 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 25
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cfg: cfg,
	}
}

// FetchMarketDetector retrieves the broker summary of emiten for [from, to].
func (c *Client) FetchMarketDetector(ctx context.Context, emiten, from, to string) (*MarketDetectorResponse, error) {
	u, err := url.Parse(c.baseURL + "/marketdetectors/" + url.PathEscape(emiten))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("from", from)
	q.Set("to", to)
	if c.cfg.TransactionType != "" {
		q.Set("transaction_type", c.cfg.TransactionType)
	}
	if c.cfg.MarketBoard != "" {
		q.Set("market_board", c.cfg.MarketBoard)
	}
	if c.cfg.InvestorType != "" {
		q.Set("investor_type", c.cfg.InvestorType)
	}
	q.Set("limit", strconv.Itoa(c.cfg.Limit))
	u.RawQuery = q.Encode()

	body, err := c.getBody(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market detector: %w", err)
	}

	var resp MarketDetectorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logger.Warn("Market detector for %s is not JSON: %v", emiten, err)
		resp = MarketDetectorResponse{Malformed: true}
	}
	return &resp, nil
}

// FetchOrderbook retrieves the live order book of emiten.
func (c *Client) FetchOrderbook(ctx context.Context, emiten string) (*OrderbookResponse, error) {
	u := c.baseURL + "/company-price-feed/v2/orderbook/companies/" + url.PathEscape(emiten)

	body, err := c.getBody(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orderbook: %w", err)
	}

	// structural problems are reported by NormalizeOrderbook, after the broker check
	var resp OrderbookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logger.Warn("Orderbook for %s is not JSON: %v", emiten, err)
		resp = OrderbookResponse{Malformed: true}
	}
	return &resp, nil
}

// FetchEmitenInfo retrieves instrument metadata such as the sector.
func (c *Client) FetchEmitenInfo(ctx context.Context, emiten string) (*EmitenInfoResponse, error) {
	u := c.baseURL + "/emitten/" + url.PathEscape(emiten) + "/info"

	var resp EmitenInfoResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch emiten info: %w", err)
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, urlStr string, out any) error {
	body, err := c.getBody(ctx, urlStr)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// getBody returns the full body of a successful response.
func (c *Client) getBody(ctx context.Context, urlStr string) ([]byte, error) {
	resp, err := c.doRequest(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// doRequest performs HTTP request with retry logic. Transport errors and 5xx
// responses are retried with linear backoff; other non-2xx responses fail at once.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.cfg.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelayBase * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
