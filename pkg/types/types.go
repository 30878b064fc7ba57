// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bot — market metadata,
// trading signals, and open positions. It has no dependencies on internal
// packages, so it can be imported by any layer.
package types

import "github.com/shopspring/decimal"

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// ExitType identifies which exit rule fired for a SELL signal.
// Empty for entry (BUY) signals.
type ExitType string

const (
	ExitNone           ExitType = ""
	ExitTakeProfit     ExitType = "take_profit"
	ExitStopLoss       ExitType = "stop_loss"
	ExitPriceThreshold ExitType = "exit_threshold"
)

// TempMetric selects which daily temperature a market resolves against.
type TempMetric string

const (
	MetricHigh TempMetric = "high"
	MetricLow  TempMetric = "low"
)

// ————————————————————————————————————————————————————————————————————————
// Market metadata
// ————————————————————————————————————————————————————————————————————————

// Outcome is one side of a market (e.g. "Yes" priced at 0.12).
type Outcome struct {
	TokenID string          // CLOB token ID used for pricing and orders
	Name    string          // outcome label as returned by the Gamma API
	Price   decimal.Decimal // last reference price in [0, 1]
}

// IsYes reports whether this outcome is the YES side by name.
func (o Outcome) IsYes() bool {
	return normalizeName(o.Name) == "YES"
}

// IsNo reports whether this outcome is the NO side by name.
func (o Outcome) IsNo() bool {
	return normalizeName(o.Name) == "NO"
}

func normalizeName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == ' ' || c == '\t' {
			continue
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// Market is the internal representation of a Polymarket binary market,
// populated from the Gamma events API during each scan.
type Market struct {
	ConditionID string
	Question    string
	Slug        string
	EventSlug   string // groups the temperature buckets of one weather event
	Active      bool
	Outcomes    []Outcome
}

// URL returns the public market page. Markets nested under an event link
// as /event/{event_slug}/{slug}.
func (m Market) URL() string {
	if m.EventSlug != "" {
		return "https://polymarket.com/event/" + m.EventSlug + "/" + m.Slug
	}
	return "https://polymarket.com/event/" + m.Slug
}

// YesOutcome returns the YES outcome. Some markets do not label a YES side;
// for those the highest-priced outcome is assumed to be YES. This is a
// documented heuristic, not a guarantee.
func (m Market) YesOutcome() (Outcome, bool) {
	for _, o := range m.Outcomes {
		if o.IsYes() {
			return o, true
		}
	}
	if len(m.Outcomes) == 0 {
		return Outcome{}, false
	}
	best := m.Outcomes[0]
	for _, o := range m.Outcomes[1:] {
		if o.Price.GreaterThan(best.Price) {
			best = o
		}
	}
	return best, true
}

// OutcomeByToken looks up an outcome by its CLOB token ID.
func (m Market) OutcomeByToken(tokenID string) (Outcome, bool) {
	for _, o := range m.Outcomes {
		if o.TokenID == tokenID {
			return o, true
		}
	}
	return Outcome{}, false
}

// ————————————————————————————————————————————————————————————————————————
// Signals and positions
// ————————————————————————————————————————————————————————————————————————

// WeatherSignal is a trade recommendation produced by the strategy.
// Signals are created fresh each scan cycle, consumed immediately by the
// engine, and never persisted.
type WeatherSignal struct {
	MarketID       string
	TokenID        string
	Action         Side
	Price          decimal.Decimal // YES price the signal was generated at
	Amount         decimal.Decimal // USD to spend (BUY); zero for SELL (sized by shares held)
	Location       string
	Date           string // resolution date, "YYYY-MM-DD"
	ForecastTemp   int    // NOAA forecast in °F; zero for exits
	BucketName     string
	Reasoning      string
	ExitType       ExitType
	MarketURL      string
	MarketQuestion string
}

// WeatherPosition is an open position created by an executed entry signal.
// Persisted as a JSON list ordered by entry time; decimal fields serialize
// as exact decimal strings so reloads are drift-free.
type WeatherPosition struct {
	MarketID       string          `json:"market_id"`
	TokenID        string          `json:"token_id"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	Shares         decimal.Decimal `json:"shares"`
	Cost           decimal.Decimal `json:"cost"`
	Location       string          `json:"location"`
	Date           string          `json:"date"`
	BucketName     string          `json:"bucket_name"`
	MarketURL      string          `json:"market_url"`
	MarketQuestion string          `json:"market_question"`
	CreatedAt      int64           `json:"created_at"` // unix seconds
}
