// Package risk tracks the bot's capital at risk across open positions.
package risk

import (
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger tracks USD exposure per market. The engine adds on every fill
// and removes on every close; totals gate new entries.
type Ledger struct {
	logger *slog.Logger

	mu       sync.Mutex
	byMarket map[string]decimal.Decimal
}

// NewLedger creates an empty exposure ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	return &Ledger{
		logger:   logger.With("component", "risk"),
		byMarket: make(map[string]decimal.Decimal),
	}
}

// Add records cost committed to a market.
func (l *Ledger) Add(marketID string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byMarket[marketID] = l.byMarket[marketID].Add(amount)
}

// Remove releases exposure when a position closes. Removing more than is
// tracked clamps to zero and logs a warning; the ledger must never go
// negative, and an overshoot points at a double-close or missed Add.
func (l *Ledger) Remove(marketID string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.byMarket[marketID]
	if !ok {
		l.logger.Warn("removing exposure from untracked market", "market", marketID, "amount", amount)
		return
	}
	remaining := current.Sub(amount)
	if remaining.IsPositive() {
		l.byMarket[marketID] = remaining
		return
	}
	if remaining.IsNegative() {
		l.logger.Warn("exposure removal overshoot, clamping to zero",
			"market", marketID,
			"tracked", current,
			"removed", amount,
		)
	}
	delete(l.byMarket, marketID)
}

// MarketExposure returns the tracked exposure for one market.
func (l *Ledger) MarketExposure(marketID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byMarket[marketID]
}

// TotalExposure returns the sum across all markets.
func (l *Ledger) TotalExposure() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := decimal.Zero
	for _, amount := range l.byMarket {
		total = total.Add(amount)
	}
	return total
}

// Stats returns a copy of the per-market exposure map for reporting.
func (l *Ledger) Stats() map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(l.byMarket))
	for market, amount := range l.byMarket {
		out[market] = amount
	}
	return out
}
