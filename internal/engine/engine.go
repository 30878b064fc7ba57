// Package engine is the central orchestrator of the weather trading bot.
//
// It wires together all subsystems:
//
//  1. Feed fetches the active weather-market snapshot from Gamma.
//  2. Strategy scans the snapshot for entries and open positions for exits.
//  3. Exchange executes signals (or estimates fills in dry-run mode).
//  4. Positions and the risk ledger persist and bound what is held.
//  5. Tracker follows every signal to resolution; Telegram delivers alerts
//     behind a per-market cooldown gate.
//
// One scan cycle runs end to end on a single goroutine, so no state is
// shared across concurrent scans; the only fan-out is the forecast
// prefetch inside the strategy.
//
// Lifecycle: New() → Run(ctx) → [runs until ctx cancelled]
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Web3Newcomer/polymarket-weather/internal/config"
	"github.com/Web3Newcomer/polymarket-weather/internal/exchange"
	"github.com/Web3Newcomer/polymarket-weather/internal/forecast"
	"github.com/Web3Newcomer/polymarket-weather/internal/market"
	"github.com/Web3Newcomer/polymarket-weather/internal/metrics"
	"github.com/Web3Newcomer/polymarket-weather/internal/notify"
	"github.com/Web3Newcomer/polymarket-weather/internal/positions"
	"github.com/Web3Newcomer/polymarket-weather/internal/risk"
	"github.com/Web3Newcomer/polymarket-weather/internal/strategy"
	"github.com/Web3Newcomer/polymarket-weather/internal/tracker"
	"github.com/Web3Newcomer/polymarket-weather/pkg/types"
)

// MarketFeed supplies the market snapshot a scan runs over.
type MarketFeed interface {
	FetchMarkets(ctx context.Context) ([]types.Market, error)
}

// Trader executes entry and exit orders.
type Trader interface {
	ExecuteBuy(ctx context.Context, tokenID string, amountUSD decimal.Decimal) exchange.TradeResult
	ExecuteSell(ctx context.Context, tokenID string, shares decimal.Decimal) exchange.TradeResult
}

// Notifier delivers one alert and reports whether it went out.
type Notifier interface {
	Send(ctx context.Context, text string) bool
}

// Engine owns one scan loop over all subsystems.
type Engine struct {
	cfg      config.Config
	feed     MarketFeed
	strategy *strategy.Weather
	client   Trader
	store    *positions.Store
	ledger   *risk.Ledger
	tracker  *tracker.Tracker
	telegram Notifier
	gate     *notify.Gate
	metrics  *metrics.Registry
	logger   *slog.Logger

	now func() time.Time
}

// New creates and wires all engine components. Credentials are only
// required when auto-trade is enabled and dry-run is off; the bot
// otherwise runs in signal-only mode against public endpoints.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	var auth *exchange.Auth
	if cfg.Weather.AutoTrade && !cfg.DryRun {
		a, err := exchange.NewAuth(cfg.API)
		if err != nil {
			return nil, fmt.Errorf("auto-trade requires credentials: %w", err)
		}
		auth = a
	}
	client := exchange.NewClient(cfg, auth, logger)

	store, err := positions.Open(cfg.Store.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open position store: %w", err)
	}
	gate, err := notify.OpenGate(cfg.Store.DataDir, notify.DefaultCooldown, logger)
	if err != nil {
		return nil, fmt.Errorf("open notification gate: %w", err)
	}
	trk, err := tracker.Open(cfg.Store.DataDir, tracker.Options{
		TakeProfitPct: cfg.Weather.TakeProfitPct,
		StopLossPct:   cfg.Weather.StopLossPct,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open signal tracker: %w", err)
	}

	noaa := forecast.NewClient(cfg.API.NOAABaseURL, logger)

	e := &Engine{
		cfg:      cfg,
		feed:     market.NewFeed(cfg.API, logger),
		strategy: strategy.NewWeather(cfg.Weather, noaa, client, logger),
		client:   client,
		store:    store,
		ledger:   risk.NewLedger(logger),
		tracker:  trk,
		telegram: notify.NewTelegram(cfg.Telegram, logger),
		gate:     gate,
		metrics:  metrics.NewRegistry(),
		logger:   logger.With("component", "engine"),
		now:      time.Now,
	}

	// Rebuild exposure from persisted positions so restarts do not reset
	// the risk picture.
	for _, pos := range store.All() {
		e.ledger.Add(pos.MarketID, pos.Cost)
	}
	return e, nil
}

// Metrics returns the engine's metrics registry for the HTTP listener.
func (e *Engine) Metrics() *metrics.Registry {
	return e.metrics
}

// Run executes scan cycles until ctx is cancelled. The first scan runs
// immediately; later cycles tick at the configured interval, skipping
// quiet hours.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("engine started",
		"dry_run", e.cfg.DryRun,
		"auto_trade", e.cfg.Weather.AutoTrade,
		"scan_interval", e.cfg.Weather.ScanInterval,
		"locations", e.cfg.Weather.Locations,
		"open_positions", e.store.Len(),
	)

	e.scan(ctx)

	ticker := time.NewTicker(e.cfg.Weather.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped")
			return
		case <-ticker.C:
			if e.isSleepTime(e.now().UTC()) {
				e.logger.Debug("quiet hours, skipping scan")
				continue
			}
			e.scan(ctx)
		}
	}
}

// scan runs one full cycle: snapshot, entries, exits, tracking, summary.
func (e *Engine) scan(ctx context.Context) {
	started := e.now()
	e.logger.Info("scan started")

	markets, err := e.feed.FetchMarkets(ctx)
	if err != nil {
		e.logger.Error("market fetch failed", "error", err)
		e.metrics.RecordScanError()
		return
	}

	e.strategy.ClearCache()

	e.processEntries(ctx, markets)
	e.processExits(ctx, markets)

	for _, alert := range e.tracker.UpdatePrices(markets) {
		e.telegram.Send(ctx, alert)
	}
	if e.tracker.ShouldPushSummary() {
		e.telegram.Send(ctx, e.tracker.DailySummary())
	}

	exposure, _ := e.ledger.TotalExposure().Float64()
	e.metrics.SetPortfolio(e.store.Len(), exposure)
	e.metrics.RecordScan(e.now().Sub(started), len(markets))

	e.logger.Info("scan complete",
		"markets", len(markets),
		"open_positions", e.store.Len(),
		"exposure_usd", e.ledger.TotalExposure(),
		"duration", e.now().Sub(started),
	)
}

// processEntries runs the entry scan and executes or announces each signal.
func (e *Engine) processEntries(ctx context.Context, markets []types.Market) {
	signals := e.strategy.ScanEntries(ctx, markets)
	for _, sig := range signals {
		e.metrics.RecordSignal(string(sig.Action))
		e.tracker.Add(sig)

		// One position per market: a repeat signal on a held market is
		// just the same opportunity persisting across scans.
		if e.store.Has(sig.MarketID) {
			e.logger.Debug("already holding market, skipping entry", "market", sig.MarketID)
			continue
		}

		if !e.cfg.Weather.AutoTrade {
			e.notifyGated(ctx, sig.MarketID, notify.FormatSignal(sig))
			continue
		}

		result := e.client.ExecuteBuy(ctx, sig.TokenID, sig.Amount)
		e.metrics.RecordTrade(string(types.BUY), result.Success)
		if !result.Success {
			e.logger.Error("entry failed", "market", sig.MarketID, "error", result.Err)
			continue
		}

		pos := types.WeatherPosition{
			MarketID:       sig.MarketID,
			TokenID:        sig.TokenID,
			EntryPrice:     result.AvgPrice,
			Shares:         result.Shares,
			Cost:           sig.Amount,
			Location:       sig.Location,
			Date:           sig.Date,
			BucketName:     sig.BucketName,
			MarketURL:      sig.MarketURL,
			MarketQuestion: sig.MarketQuestion,
			CreatedAt:      e.now().Unix(),
		}
		if err := e.store.Put(pos); err != nil {
			e.logger.Error("persist position failed", "market", sig.MarketID, "error", err)
		}
		e.ledger.Add(sig.MarketID, sig.Amount)

		e.notifyGated(ctx, sig.MarketID, notify.FormatEntryTrade(sig, result.Shares, result.AvgPrice, e.cfg.DryRun))
	}
}

// notifyGated sends one per-market alert behind the cooldown gate. The
// cooldown only starts on a confirmed delivery, so a failed send leaves
// the market clear to alert again on the next scan.
func (e *Engine) notifyGated(ctx context.Context, marketID, text string) {
	if !e.gate.ShouldNotify(marketID) {
		return
	}
	if e.telegram.Send(ctx, text) {
		e.gate.MarkNotified(marketID)
	}
}

// processExits runs the exit scan and closes positions.
func (e *Engine) processExits(ctx context.Context, markets []types.Market) {
	signals := e.strategy.ScanExits(ctx, e.store.All(), markets)
	for _, sig := range signals {
		e.metrics.RecordSignal(string(sig.Action))

		pos, ok := e.store.Get(sig.MarketID)
		if !ok {
			continue
		}

		if !e.cfg.Weather.AutoTrade {
			// Positions only exist when auto-trade placed them, but a
			// flipped config must not strand exits silently.
			e.logger.Warn("exit signal with auto-trade disabled", "market", sig.MarketID, "exit", sig.ExitType)
			e.telegram.Send(ctx, notify.FormatSignal(sig))
			continue
		}

		result := e.client.ExecuteSell(ctx, sig.TokenID, pos.Shares)
		e.metrics.RecordTrade(string(types.SELL), result.Success)
		if !result.Success {
			e.logger.Error("exit failed", "market", sig.MarketID, "error", result.Err)
			continue
		}

		if err := e.store.Remove(sig.MarketID); err != nil {
			e.logger.Error("remove position failed", "market", sig.MarketID, "error", err)
		}
		e.ledger.Remove(sig.MarketID, pos.Cost)
		e.tracker.MarkResolved(sig.MarketID, result.AvgPrice, sig.ExitType)

		// Exits always notify; the cooldown gate only applies to entry
		// alerts, a closed position is terminal.
		e.telegram.Send(ctx, notify.FormatExitTrade(sig, pos, result.AvgPrice, e.cfg.DryRun))
	}
}

// isSleepTime reports whether t falls in the quiet-hours window
// [SleepStartHour, SleepEndHour), wrapping across midnight when
// start > end. Equal bounds disable quiet hours.
func (e *Engine) isSleepTime(t time.Time) bool {
	start := e.cfg.Weather.SleepStartHour
	end := e.cfg.Weather.SleepEndHour
	if start == end {
		return false
	}
	h := t.Hour()
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}
