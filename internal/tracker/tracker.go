// Package tracker records every emitted signal and follows it to
// resolution, independent of whether it was traded. The record answers
// the question that matters for tuning: how often does the forecast edge
// actually pay?
//
// Lifecycle of a tracked signal:
//
//	active → resolved_win   market price reached ≥ 0.99
//	       → resolved_loss  market price reached ≤ 0.01
//	       → expired        still unresolved 24h after tracking began
//
// Resolved and expired signals are kept for a week after resolution for
// the summaries, then pruned on load.
package tracker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Web3Newcomer/polymarket-weather/pkg/types"
)

// Signal statuses.
const (
	StatusActive       = "active"
	StatusResolvedWin  = "resolved_win"
	StatusResolvedLoss = "resolved_loss"
	StatusExpired      = "expired"
)

const (
	fileName = "signal_tracker.json"

	// A signal unresolved this long after tracking began is written off.
	expireAfter = 24 * time.Hour

	// Finished signals are pruned this long after resolution.
	retainFor = 7 * 24 * time.Hour

	// bigMovePct is the relative price move from signal price that
	// triggers a one-time alert in each direction.
	bigMovePct = 0.20

	// Price levels treated as market resolution.
	winPrice  = 0.99
	lossPrice = 0.01

	// Daily summaries push at this UTC hour, at most once per spacing.
	summaryHourUTC = 14
	summarySpacing = 20 * time.Hour
)

// TrackedSignal is one signal's lifecycle record.
type TrackedSignal struct {
	SignalID     string          `json:"signal_id"`
	MarketID     string          `json:"market_id"`
	TokenID      string          `json:"token_id"`
	Question     string          `json:"question"`
	Location     string          `json:"location"`
	Date         string          `json:"date"`
	BucketName   string          `json:"bucket_name"`
	ForecastTemp int             `json:"forecast_temp"`
	SignalPrice  decimal.Decimal `json:"signal_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	HighPrice    decimal.Decimal `json:"high_price"`
	LowPrice     decimal.Decimal `json:"low_price"`
	Status       string          `json:"status"`
	MarketURL    string          `json:"market_url"`
	CreatedAt    int64           `json:"created_at"`
	UpdatedAt    int64           `json:"updated_at"`

	// One-shot alert flags so each alert kind fires at most once.
	TakeProfitAlerted  bool `json:"take_profit_alerted,omitempty"`
	StopLossAlerted    bool `json:"stop_loss_alerted,omitempty"`
	BigMoveUpAlerted   bool `json:"big_move_up_alerted,omitempty"`
	BigMoveDownAlerted bool `json:"big_move_down_alerted,omitempty"`
	ResolutionAlerted  bool `json:"resolution_alerted,omitempty"`

	// Outcome, set when the signal leaves active.
	ResolutionPrice decimal.Decimal `json:"resolution_price"`
	ResolvedAt      int64           `json:"resolved_at,omitempty"`
	ForecastCorrect bool            `json:"forecast_correct"`
	PnlPct          float64         `json:"pnl_pct"`
}

// pnlPct returns the relative move of price from the signal price.
func (ts *TrackedSignal) pnlPct(price decimal.Decimal) float64 {
	if !ts.SignalPrice.IsPositive() {
		return 0
	}
	move, _ := price.Sub(ts.SignalPrice).Div(ts.SignalPrice).Float64()
	return move
}

// Options holds the alert thresholds that mirror the trading strategy,
// so untraded signals still report when their exits would have fired.
// Non-positive thresholds disable the corresponding alert.
type Options struct {
	TakeProfitPct float64
	StopLossPct   float64
}

// trackerState is the on-disk shape.
type trackerState struct {
	Signals         map[string]*TrackedSignal `json:"signals"` // keyed by signal ID
	LastSummaryPush int64                     `json:"last_summary_push"`
}

// Tracker follows signals to resolution and produces alerts/summaries.
type Tracker struct {
	path   string
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state trackerState
}

// Open loads the tracker state, pruning finished signals older than the
// retention window. Missing or malformed files start empty.
func Open(dir string, opts Options, logger *slog.Logger) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	t := &Tracker{
		path:   filepath.Join(dir, fileName),
		opts:   opts,
		logger: logger.With("component", "tracker"),
		now:    time.Now,
		state:  trackerState{Signals: make(map[string]*TrackedSignal)},
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("read tracker state: %w", err)
	}
	if err := json.Unmarshal(data, &t.state); err != nil {
		t.logger.Warn("tracker state malformed, starting empty", "error", err)
		t.state = trackerState{Signals: make(map[string]*TrackedSignal)}
		return t, nil
	}
	if t.state.Signals == nil {
		t.state.Signals = make(map[string]*TrackedSignal)
	}

	t.pruneLocked()
	return t, nil
}

// Add starts tracking a signal. A market with an active tracked signal is
// not tracked twice; re-emissions of the same opportunity are expected
// on every scan while it persists.
func (t *Tracker) Add(sig types.WeatherSignal) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ts := range t.state.Signals {
		if ts.MarketID == sig.MarketID && ts.Status == StatusActive {
			return false
		}
	}

	now := t.now().Unix()
	ts := &TrackedSignal{
		SignalID:     uuid.NewString(),
		MarketID:     sig.MarketID,
		TokenID:      sig.TokenID,
		Question:     sig.MarketQuestion,
		Location:     sig.Location,
		Date:         sig.Date,
		BucketName:   sig.BucketName,
		ForecastTemp: sig.ForecastTemp,
		SignalPrice:  sig.Price,
		CurrentPrice: sig.Price,
		HighPrice:    sig.Price,
		LowPrice:     sig.Price,
		Status:       StatusActive,
		MarketURL:    sig.MarketURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	t.state.Signals[ts.SignalID] = ts
	t.saveLocked()
	t.logger.Info("tracking signal", "signal_id", ts.SignalID, "market", ts.MarketID, "price", ts.SignalPrice)
	return true
}

// UpdatePrices refreshes current prices and high/low watermarks of active
// signals from a market snapshot, then applies resolution and expiry
// transitions and the price alerts. Returns the alert messages generated
// by this pass.
func (t *Tracker) UpdatePrices(markets []types.Market) []string {
	byID := make(map[string]types.Market, len(markets))
	for _, m := range markets {
		byID[m.ConditionID] = m
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var alerts []string
	changed := false

	for _, ts := range t.state.Signals {
		if ts.Status != StatusActive {
			continue
		}

		if m, ok := byID[ts.MarketID]; ok {
			if o, ok := m.OutcomeByToken(ts.TokenID); ok {
				ts.CurrentPrice = o.Price
				if o.Price.GreaterThan(ts.HighPrice) {
					ts.HighPrice = o.Price
				}
				if o.Price.LessThan(ts.LowPrice) {
					ts.LowPrice = o.Price
				}
				ts.UpdatedAt = now.Unix()
				changed = true
			}
		}

		if alert := t.transition(ts, now); alert != "" {
			alerts = append(alerts, alert)
			changed = true
		}
		if alert := t.priceAlert(ts); alert != "" {
			alerts = append(alerts, alert)
			changed = true
		}
	}

	if changed {
		t.saveLocked()
	}
	return alerts
}

// transition applies resolution and expiry rules to one active signal and
// returns the alert text when a terminal state is reached.
func (t *Tracker) transition(ts *TrackedSignal, now time.Time) string {
	price, _ := ts.CurrentPrice.Float64()
	switch {
	case price >= winPrice:
		ts.Status = StatusResolvedWin
		ts.ForecastCorrect = true
	case price <= lossPrice:
		ts.Status = StatusResolvedLoss
	case now.Sub(time.Unix(ts.CreatedAt, 0)) >= expireAfter:
		ts.Status = StatusExpired
	default:
		return ""
	}
	ts.ResolutionPrice = ts.CurrentPrice
	ts.ResolvedAt = now.Unix()
	ts.PnlPct = ts.pnlPct(ts.CurrentPrice)

	if ts.ResolutionAlerted {
		return ""
	}
	ts.ResolutionAlerted = true

	switch ts.Status {
	case StatusResolvedWin:
		return fmt.Sprintf("🏆 *Signal WON*\n\n%s\n📍 %s %s · entry $%s → resolved YES",
			ts.Question, ts.Location, ts.BucketName, ts.SignalPrice.StringFixed(3))
	case StatusResolvedLoss:
		return fmt.Sprintf("❌ *Signal LOST*\n\n%s\n📍 %s %s · entry $%s → resolved NO",
			ts.Question, ts.Location, ts.BucketName, ts.SignalPrice.StringFixed(3))
	default:
		return fmt.Sprintf("⌛ *Signal expired unresolved*\n\n%s\n📍 %s %s · last price $%s",
			ts.Question, ts.Location, ts.BucketName, ts.CurrentPrice.StringFixed(3))
	}
}

// priceAlert fires the first alert whose threshold the current move
// crosses, at most once per kind per signal. Take-profit and stop-loss
// outrank the plain big-move alerts so a +55% move reads as "take-profit
// level hit", not "big move".
func (t *Tracker) priceAlert(ts *TrackedSignal) string {
	if ts.Status != StatusActive || !ts.SignalPrice.IsPositive() {
		return ""
	}
	move := ts.pnlPct(ts.CurrentPrice)

	switch {
	case t.opts.TakeProfitPct > 0 && move >= t.opts.TakeProfitPct && !ts.TakeProfitAlerted:
		ts.TakeProfitAlerted = true
		return fmt.Sprintf("🎯 *Take-profit level hit* (+%.0f%%)\n\n%s\n📍 %s %s · $%s → $%s",
			move*100, ts.Question, ts.Location, ts.BucketName,
			ts.SignalPrice.StringFixed(3), ts.CurrentPrice.StringFixed(3))
	case t.opts.StopLossPct > 0 && move <= -t.opts.StopLossPct && !ts.StopLossAlerted:
		ts.StopLossAlerted = true
		return fmt.Sprintf("🛑 *Stop-loss level hit* (%.0f%%)\n\n%s\n📍 %s %s · $%s → $%s",
			move*100, ts.Question, ts.Location, ts.BucketName,
			ts.SignalPrice.StringFixed(3), ts.CurrentPrice.StringFixed(3))
	case move >= bigMovePct && !ts.BigMoveUpAlerted:
		ts.BigMoveUpAlerted = true
		return fmt.Sprintf("📈 *%.0f%% move up on tracked signal*\n\n%s\n📍 %s %s · $%s → $%s",
			move*100, ts.Question, ts.Location, ts.BucketName,
			ts.SignalPrice.StringFixed(3), ts.CurrentPrice.StringFixed(3))
	case move <= -bigMovePct && !ts.BigMoveDownAlerted:
		ts.BigMoveDownAlerted = true
		return fmt.Sprintf("📉 *%.0f%% move down on tracked signal*\n\n%s\n📍 %s %s · $%s → $%s",
			move*100, ts.Question, ts.Location, ts.BucketName,
			ts.SignalPrice.StringFixed(3), ts.CurrentPrice.StringFixed(3))
	}
	return ""
}

// MarkResolved force-resolves the active signal for a market when the bot
// itself closed the position instead of waiting for the market to hit a
// resolution price. Profitable exits count as wins, stop-losses as losses.
func (t *Tracker) MarkResolved(marketID string, price decimal.Decimal, exitType types.ExitType) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ts := range t.state.Signals {
		if ts.MarketID != marketID || ts.Status != StatusActive {
			continue
		}
		ts.CurrentPrice = price
		if price.GreaterThan(ts.HighPrice) {
			ts.HighPrice = price
		}
		if price.LessThan(ts.LowPrice) {
			ts.LowPrice = price
		}
		ts.ResolutionPrice = price
		ts.ResolvedAt = t.now().Unix()
		ts.UpdatedAt = ts.ResolvedAt
		ts.PnlPct = ts.pnlPct(price)
		ts.ResolutionAlerted = true // the exit notification already covers it
		if exitType == types.ExitStopLoss {
			ts.Status = StatusResolvedLoss
		} else {
			ts.Status = StatusResolvedWin
			ts.ForecastCorrect = true
		}
		t.saveLocked()
		t.logger.Info("signal resolved by exit", "signal_id", ts.SignalID, "market", marketID, "exit", exitType, "status", ts.Status)
		return
	}
}

// Active returns the active tracked signals, oldest first.
func (t *Tracker) Active() []TrackedSignal {
	return t.byStatus(StatusActive)
}

func (t *Tracker) byStatus(status string) []TrackedSignal {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []TrackedSignal
	for _, ts := range t.state.Signals {
		if ts.Status == status {
			out = append(out, *ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// Stats aggregates the tracked record over a lookback window.
type Stats struct {
	Total   int
	Active  int
	Wins    int
	Losses  int
	Expired int

	// AvgReturn averages PnlPct over finished signals in the window.
	AvgReturn float64
}

// WinRate returns wins / (wins + losses), or 0 with no resolutions.
func (s Stats) WinRate() float64 {
	decided := s.Wins + s.Losses
	if decided == 0 {
		return 0
	}
	return float64(s.Wins) / float64(decided)
}

// StatsSince aggregates all signals created in the lookback window.
func (t *Tracker) StatsSince(lookback time.Duration) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-lookback).Unix()
	var s Stats
	var retSum float64
	for _, ts := range t.state.Signals {
		if ts.CreatedAt < cutoff {
			continue
		}
		s.Total++
		switch ts.Status {
		case StatusActive:
			s.Active++
		case StatusResolvedWin:
			s.Wins++
		case StatusResolvedLoss:
			s.Losses++
		case StatusExpired:
			s.Expired++
		}
		if ts.Status != StatusActive {
			retSum += ts.PnlPct
		}
	}
	if finished := s.Wins + s.Losses + s.Expired; finished > 0 {
		s.AvgReturn = retSum / float64(finished)
	}
	return s
}

// ShouldPushSummary reports whether the daily summary is due: at or past
// the summary hour UTC, spaced at least summarySpacing from the previous
// push, and only when there is something to report. A positive answer
// records the push time.
func (t *Tracker) ShouldPushSummary() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	if now.Hour() != summaryHourUTC {
		return false
	}
	if now.Unix()-t.state.LastSummaryPush < int64(summarySpacing.Seconds()) {
		return false
	}
	if len(t.state.Signals) == 0 {
		return false
	}

	t.state.LastSummaryPush = now.Unix()
	t.saveLocked()
	return true
}

// DailySummary renders the last 24 hours of tracked signals.
func (t *Tracker) DailySummary() string {
	return t.summary("Daily", 24*time.Hour)
}

// WeeklySummary renders the last 7 days of tracked signals.
func (t *Tracker) WeeklySummary() string {
	return t.summary("Weekly", 7*24*time.Hour)
}

func (t *Tracker) summary(label string, lookback time.Duration) string {
	s := t.StatsSince(lookback)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *%s Signal Summary*\n\n", label)
	fmt.Fprintf(&b, "Signals: %d\n", s.Total)
	fmt.Fprintf(&b, "Active: %d\n", s.Active)
	fmt.Fprintf(&b, "Wins: %d · Losses: %d · Expired: %d\n", s.Wins, s.Losses, s.Expired)
	if s.Wins+s.Losses > 0 {
		fmt.Fprintf(&b, "Win rate: %.0f%%\n", s.WinRate()*100)
		fmt.Fprintf(&b, "Avg return: %+.1f%%\n", s.AvgReturn*100)
	}

	if active := t.Active(); len(active) > 0 {
		b.WriteString("\n*Open signals:*\n")
		for _, ts := range active {
			fmt.Fprintf(&b, "• %s %s on %s: $%s → $%s\n",
				ts.Location, ts.BucketName, ts.Date,
				ts.SignalPrice.StringFixed(3), ts.CurrentPrice.StringFixed(3))
		}
	}
	return b.String()
}

// pruneLocked drops finished signals whose resolution is past retention.
// Caller holds the mutex or has exclusive access.
func (t *Tracker) pruneLocked() {
	cutoff := t.now().Add(-retainFor).Unix()
	pruned := 0
	for id, ts := range t.state.Signals {
		if ts.Status != StatusActive && ts.ResolvedAt > 0 && ts.ResolvedAt < cutoff {
			delete(t.state.Signals, id)
			pruned++
		}
	}
	if pruned > 0 {
		t.logger.Info("pruned finished signals", "count", pruned)
		t.saveLocked()
	}
}

// saveLocked atomically rewrites the state file. Caller holds the mutex.
func (t *Tracker) saveLocked() {
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		t.logger.Error("marshal tracker state", "error", err)
		return
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		t.logger.Error("write tracker state", "error", err)
		return
	}
	if err := os.Rename(tmp, t.path); err != nil {
		t.logger.Error("replace tracker state", "error", err)
	}
}
