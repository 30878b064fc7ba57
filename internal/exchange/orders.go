package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Web3Newcomer/polymarket-weather/pkg/types"
)

// TradeResult is the outcome of one buy or sell attempt.
type TradeResult struct {
	Success  bool
	Shares   decimal.Decimal // tokens bought or sold
	AvgPrice decimal.Decimal // effective fill price
	Err      error
}

// Fallback fill estimates for dry runs when the book is unreadable: a
// typical underpriced entry and a mid-range exit.
var (
	fallbackBuyPrice  = decimal.NewFromFloat(0.10)
	fallbackSellPrice = decimal.NewFromFloat(0.50)
)

// ExecuteBuy spends amountUSD on a token at the current best ask with a
// fill-or-kill order. In dry-run mode it reports an estimated fill without
// touching the venue.
func (c *Client) ExecuteBuy(ctx context.Context, tokenID string, amountUSD decimal.Decimal) TradeResult {
	price := c.topOfBook(ctx, tokenID, types.BUY)
	shares := amountUSD.Div(price)

	if c.dryRun {
		c.logger.Info("DRY-RUN: would buy",
			"token", tokenID,
			"amount_usd", amountUSD,
			"est_price", price,
			"est_shares", shares,
		)
		return TradeResult{Success: true, Shares: shares, AvgPrice: price}
	}

	resp, err := c.placeOrder(ctx, tokenID, types.BUY, price, shares)
	if err != nil {
		return TradeResult{Err: err}
	}
	c.logger.Info("buy filled", "token", tokenID, "order_id", resp.OrderID, "price", price, "shares", shares)
	return TradeResult{Success: true, Shares: shares, AvgPrice: price}
}

// ExecuteSell sells shares of a token at the current best bid with a
// fill-or-kill order.
func (c *Client) ExecuteSell(ctx context.Context, tokenID string, shares decimal.Decimal) TradeResult {
	price := c.topOfBook(ctx, tokenID, types.SELL)

	if c.dryRun {
		c.logger.Info("DRY-RUN: would sell",
			"token", tokenID,
			"shares", shares,
			"est_price", price,
		)
		return TradeResult{Success: true, Shares: shares, AvgPrice: price}
	}

	resp, err := c.placeOrder(ctx, tokenID, types.SELL, price, shares)
	if err != nil {
		return TradeResult{Err: err}
	}
	c.logger.Info("sell filled", "token", tokenID, "order_id", resp.OrderID, "price", price, "shares", shares)
	return TradeResult{Success: true, Shares: shares, AvgPrice: price}
}

// topOfBook returns the crossing price for a marketable order: best ask
// for buys, best bid for sells. Falls back to conservative estimates when
// the book is empty or unreachable.
func (c *Client) topOfBook(ctx context.Context, tokenID string, side types.Side) decimal.Decimal {
	fallback := fallbackBuyPrice
	if side == types.SELL {
		fallback = fallbackSellPrice
	}

	book, err := c.GetOrderBook(ctx, tokenID)
	if err != nil {
		c.logger.Warn("book unavailable, using fallback price", "token", tokenID, "side", side, "error", err)
		return fallback
	}

	levels := book.Asks
	if side == types.SELL {
		levels = book.Bids
	}
	best := decimal.Decimal{}
	for _, lvl := range levels {
		p, err := decimal.NewFromString(lvl.Price)
		if err != nil || !p.IsPositive() {
			continue
		}
		if best.IsZero() {
			best = p
			continue
		}
		if side == types.BUY && p.LessThan(best) {
			best = p
		}
		if side == types.SELL && p.GreaterThan(best) {
			best = p
		}
	}
	if best.IsZero() {
		c.logger.Warn("empty book side, using fallback price", "token", tokenID, "side", side)
		return fallback
	}
	return best
}
