// Package exchange implements the Polymarket CLOB REST client used for
// live pricing and order execution.
//
//   - GetPrice:     GET  /price — best executable price for one side
//   - GetOrderBook: GET  /book  — L2 book for a token
//   - PlaceOrder:   POST /order — fill-or-kill market order
//
// Every request is rate-limited via per-category TokenBuckets and retried
// on 5xx errors. Mutating calls carry L2 HMAC auth headers; market data
// reads are public.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/Web3Newcomer/polymarket-weather/internal/config"
	"github.com/Web3Newcomer/polymarket-weather/pkg/types"
)

// BookLevel is one price level of the L2 order book.
type BookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookResponse is the L2 order book for one token.
type BookResponse struct {
	Market string      `json:"market"`
	Asset  string      `json:"asset_id"`
	Bids   []BookLevel `json:"bids"`
	Asks   []BookLevel `json:"asks"`
}

type priceResponse struct {
	Price string `json:"price"`
}

type orderResponse struct {
	Success      bool   `json:"success"`
	OrderID      string `json:"orderID"`
	Status       string `json:"status"`
	ErrorMsg     string `json:"errorMsg"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
}

// Client is the Polymarket CLOB REST API client.
type Client struct {
	http   *resty.Client
	auth   *Auth // nil in signal-only mode; market data stays available
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewClient creates a CLOB client. auth may be nil when only public
// market-data endpoints are needed.
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.CLOBBaseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		dryRun: cfg.DryRun,
		logger: logger.With("component", "exchange"),
	}
}

// FetchPrice returns the best executable price for a token on one side.
// The false return covers both transport failures and an empty book;
// callers fall back to snapshot pricing.
func (c *Client) FetchPrice(ctx context.Context, tokenID string, side types.Side) (decimal.Decimal, bool) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return decimal.Decimal{}, false
	}

	var result priceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"token_id": tokenID,
			"side":     string(side),
		}).
		SetResult(&result).
		Get("/price")
	if err != nil || resp.StatusCode() != http.StatusOK {
		c.logger.Debug("price fetch failed", "token", tokenID, "error", err)
		return decimal.Decimal{}, false
	}

	price, err := decimal.NewFromString(result.Price)
	if err != nil || !price.IsPositive() {
		return decimal.Decimal{}, false
	}
	return price, true
}

// GetOrderBook fetches the order book for a single token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*BookResponse, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result BookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/book")
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// placeOrder posts one fill-or-kill order. The order either fills
// immediately at the book's current levels or is rejected whole.
func (c *Client) placeOrder(ctx context.Context, tokenID string, side types.Side, price, size decimal.Decimal) (*orderResponse, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("place order: no credentials configured")
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"order": map[string]any{
			"tokenID": tokenID,
			"price":   price.String(),
			"size":    size.String(),
			"side":    string(side),
			"maker":   c.auth.FunderAddress(),
		},
		"orderType": "FOK",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	headers, err := c.auth.L2Headers(http.MethodPost, "/order", string(body))
	if err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}

	var result orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		SetResult(&result).
		Post("/order")
	if err != nil {
		return nil, fmt.Errorf("post order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("post order: status %d: %s", resp.StatusCode(), resp.String())
	}
	if !result.Success {
		return nil, fmt.Errorf("order rejected: %s", result.ErrorMsg)
	}
	return &result, nil
}
