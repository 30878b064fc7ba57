// Package strategy implements the forecast-vs-price signal engine for
// Polymarket weather markets.
//
// The edge: NOAA forecasts are authoritative, but Polymarket weather
// buckets are often priced by vibes. When the forecast temperature falls
// inside a bucket whose YES price is still cheap, the bucket is likely
// underpriced. The engine therefore:
//
//  1. Filters the market snapshot down to weather markets by keyword.
//  2. Groups the temperature buckets of one event (same city + day).
//  3. Prefetches NOAA forecasts for all needed cities concurrently.
//  4. Emits a BUY on every bucket the forecast lands in that trades below
//     the entry threshold, up to a per-scan trade cap.
//  5. Separately scans open positions for stop-loss / take-profit /
//     threshold exits, in that strict priority order.
//
// Parsing and safeguard checks are pure; all network access goes through
// the injected forecast source and price fetcher.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Web3Newcomer/polymarket-weather/internal/config"
	"github.com/Web3Newcomer/polymarket-weather/internal/forecast"
	"github.com/Web3Newcomer/polymarket-weather/pkg/types"
)

// ForecastSource provides multi-day forecasts per city code.
// Implementations return an empty Forecast on failure.
type ForecastSource interface {
	GetForecast(ctx context.Context, location string) forecast.Forecast
}

// PriceFetcher exposes live executable pricing from the order venue.
// It returns false when no price is available; callers fall back to the
// market snapshot's reference price.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, tokenID string, side types.Side) (decimal.Decimal, bool)
}

// Weather is the signal engine. It owns the per-scan forecast cache as
// explicit state; the engine calls ClearCache at the start of each cycle.
type Weather struct {
	cfg       config.WeatherConfig
	forecasts ForecastSource
	cache     *forecast.Cache
	prices    PriceFetcher // optional; nil = snapshot pricing only
	logger    *slog.Logger

	watchList map[string]bool
}

// NewWeather creates the signal engine. prices may be nil when no live
// pricing venue is configured.
func NewWeather(cfg config.WeatherConfig, forecasts ForecastSource, prices PriceFetcher, logger *slog.Logger) *Weather {
	watch := make(map[string]bool, len(cfg.Locations))
	for _, loc := range cfg.Locations {
		watch[loc] = true
	}
	return &Weather{
		cfg:       cfg,
		forecasts: forecasts,
		cache:     forecast.NewCache(),
		prices:    prices,
		logger:    logger.With("component", "strategy"),
		watchList: watch,
	}
}

// ClearCache drops the forecast cache. Called once per scan cycle before
// ScanEntries so forecasts are refetched at most once per cycle.
func (w *Weather) ClearCache() {
	w.cache.Clear()
}

// marketGroup is one weather event: all temperature-bucket markets that
// resolve from the same forecast.
type marketGroup struct {
	key     string
	markets []types.Market
}

// ScanEntries scans a market snapshot for entry opportunities and returns
// at most MaxTradesPerScan BUY signals. Failures for individual locations
// or markets are skipped, never fatal to the scan.
func (w *Weather) ScanEntries(ctx context.Context, markets []types.Market) []types.WeatherSignal {
	now := time.Now().UTC()

	var weatherMarkets []types.Market
	for _, m := range markets {
		if IsWeatherMarket(m.Question) {
			weatherMarkets = append(weatherMarkets, m)
		}
	}
	if len(weatherMarkets) == 0 {
		w.logger.Info("no weather markets found")
		return nil
	}
	w.logger.Info("weather markets found", "count", len(weatherMarkets))

	groups := groupByEvent(weatherMarkets)
	w.logger.Info("grouped into weather events", "events", len(groups))

	w.prefetchForecasts(ctx, groups, now)

	var signals []types.WeatherSignal

	for _, group := range groups {
		if len(signals) >= w.cfg.MaxTradesPerScan {
			break
		}

		event, ok := ParseWeatherEvent(group.markets[0].Question, now)
		if !ok {
			continue
		}
		if !w.watchList[event.Location] {
			continue
		}
		if w.tooCloseToResolution(event.Date, now) {
			w.logger.Debug("resolution too close", "location", event.Location, "date", event.Date)
			continue
		}

		forecastTemp, ok := w.lookupForecast(event)
		if !ok {
			w.logger.Debug("no forecast", "location", event.Location, "date", event.Date, "metric", event.Metric)
			continue
		}
		w.logger.Info("forecast",
			"location", event.Location,
			"date", event.Date,
			"metric", event.Metric,
			"temp_f", forecastTemp,
		)

		for _, market := range group.markets {
			if len(signals) >= w.cfg.MaxTradesPerScan {
				break
			}
			if sig, ok := w.evaluateEntry(ctx, market, event, forecastTemp); ok {
				signals = append(signals, sig)
				w.logger.Info("BUY signal",
					"location", event.Location,
					"date", event.Date,
					"bucket", sig.BucketName,
					"price", sig.Price,
				)
			}
		}
	}

	return signals
}

// evaluateEntry checks one bucket market against the forecast and pricing
// rules. Returns false for every expected filtering outcome.
func (w *Weather) evaluateEntry(ctx context.Context, market types.Market, event EventInfo, forecastTemp int) (types.WeatherSignal, bool) {
	bucket, ok := ParseTemperatureBucket(market.Question)
	if !ok || !bucket.Contains(forecastTemp) {
		return types.WeatherSignal{}, false
	}

	yes, ok := market.YesOutcome()
	if !ok {
		return types.WeatherSignal{}, false
	}

	// Prefer a live executable venue price over the snapshot's reference
	// price when one is available.
	price := yes.Price
	if w.prices != nil {
		if live, ok := w.prices.FetchPrice(ctx, yes.TokenID, types.BUY); ok && live.IsPositive() {
			price = live
		}
	}

	if ok, reason := w.CheckSafeguards(price); !ok {
		w.logger.Debug("safeguard blocked", "market", market.Slug, "reason", reason)
		return types.WeatherSignal{}, false
	}

	priceF, _ := price.Float64()
	if priceF < w.cfg.MinEntryPrice {
		w.logger.Debug("below min entry price", "market", market.Slug, "price", price)
		return types.WeatherSignal{}, false
	}
	if priceF >= w.cfg.EntryThreshold {
		return types.WeatherSignal{}, false
	}

	bucketName := FormatBucketName(bucket)
	return types.WeatherSignal{
		MarketID:     market.ConditionID,
		TokenID:      yes.TokenID,
		Action:       types.BUY,
		Price:        price,
		Amount:       w.cfg.MaxPositionUSD,
		Location:     event.Location,
		Date:         event.Date,
		ForecastTemp: forecastTemp,
		BucketName:   bucketName,
		Reasoning: fmt.Sprintf("NOAA forecast %d°F lands in %s; YES at $%s under entry threshold $%.2f",
			forecastTemp, bucketName, price.String(), w.cfg.EntryThreshold),
		MarketURL:      market.URL(),
		MarketQuestion: market.Question,
	}, true
}

// ScanExits checks every open position against the current snapshot and
// returns SELL signals. Exit rules are evaluated in strict priority order —
// stop-loss, then take-profit, then the price-threshold exit — and only the
// first match fires, one exit type per position per scan.
func (w *Weather) ScanExits(ctx context.Context, positions []types.WeatherPosition, markets []types.Market) []types.WeatherSignal {
	if len(positions) == 0 {
		return nil
	}

	marketMap := make(map[string]types.Market, len(markets))
	for _, m := range markets {
		marketMap[m.ConditionID] = m
	}

	var signals []types.WeatherSignal

	for _, pos := range positions {
		market, ok := marketMap[pos.MarketID]
		if !ok {
			// Snapshot gaps are transient; retry next cycle.
			w.logger.Debug("market not in snapshot, skipping exit check", "market", pos.MarketID)
			continue
		}

		currentPrice, ok := currentYesPrice(market, pos.TokenID)
		if !ok {
			continue
		}
		if !pos.EntryPrice.IsPositive() {
			continue
		}

		pnlPct, _ := currentPrice.Sub(pos.EntryPrice).Div(pos.EntryPrice).Float64()
		priceF, _ := currentPrice.Float64()

		var exitType types.ExitType
		var reasoning string
		switch {
		case pnlPct <= -w.cfg.StopLossPct:
			exitType = types.ExitStopLoss
			reasoning = fmt.Sprintf("stop loss: down %.1f%%, past -%.0f%% line", pnlPct*100, w.cfg.StopLossPct*100)
		case pnlPct >= w.cfg.TakeProfitPct:
			exitType = types.ExitTakeProfit
			reasoning = fmt.Sprintf("take profit: up %.1f%%, past +%.0f%% line", pnlPct*100, w.cfg.TakeProfitPct*100)
		case priceF >= w.cfg.ExitThreshold:
			exitType = types.ExitPriceThreshold
			reasoning = fmt.Sprintf("threshold exit: price $%s reached exit threshold $%.2f", currentPrice.String(), w.cfg.ExitThreshold)
		default:
			continue
		}

		signals = append(signals, types.WeatherSignal{
			MarketID:       pos.MarketID,
			TokenID:        pos.TokenID,
			Action:         types.SELL,
			Price:          currentPrice,
			Amount:         decimal.Zero, // sells are sized by shares held
			Location:       pos.Location,
			Date:           pos.Date,
			BucketName:     pos.BucketName,
			Reasoning:      reasoning,
			ExitType:       exitType,
			MarketURL:      pos.MarketURL,
			MarketQuestion: pos.MarketQuestion,
		})
		w.logger.Info("SELL signal",
			"exit_type", exitType,
			"location", pos.Location,
			"date", pos.Date,
			"bucket", pos.BucketName,
			"price", currentPrice,
			"entry", pos.EntryPrice,
		)
	}

	return signals
}

// CheckSafeguards rejects prices that cannot be traded sensibly: below one
// tick (effectively zero) or above 1 minus one tick (effectively certain,
// no asymmetric upside left).
func (w *Weather) CheckSafeguards(price decimal.Decimal) (bool, string) {
	p, _ := price.Float64()
	if p < w.cfg.MinTickSize {
		return false, fmt.Sprintf("price $%s below min tick $%v", price.String(), w.cfg.MinTickSize)
	}
	if p > 1-w.cfg.MinTickSize {
		return false, fmt.Sprintf("price $%s above max tradeable", price.String())
	}
	return true, ""
}

// groupByEvent buckets markets by event slug (falling back to condition ID
// for markets outside an event), preserving first-seen order so scans are
// deterministic over a given snapshot.
func groupByEvent(markets []types.Market) []marketGroup {
	index := make(map[string]int)
	var groups []marketGroup
	for _, m := range markets {
		key := m.EventSlug
		if key == "" {
			key = m.ConditionID
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, marketGroup{key: key})
		}
		groups[i].markets = append(groups[i].markets, m)
	}
	return groups
}

// prefetchForecasts resolves the distinct watch-list locations needed by
// the groups and fetches their forecasts concurrently. This is the only
// fan-out in a scan cycle; results land in the cache before matching
// begins. A failed fetch caches an empty forecast.
func (w *Weather) prefetchForecasts(ctx context.Context, groups []marketGroup, now time.Time) {
	needed := make(map[string]bool)
	for _, group := range groups {
		if event, ok := ParseWeatherEvent(group.markets[0].Question, now); ok && w.watchList[event.Location] {
			needed[event.Location] = true
		}
	}

	var wg sync.WaitGroup
	for loc := range needed {
		if _, ok := w.cache.Get(loc); ok {
			continue
		}
		wg.Add(1)
		go func(location string) {
			defer wg.Done()
			w.cache.Put(location, w.forecasts.GetForecast(ctx, location))
		}(loc)
	}
	wg.Wait()
}

func (w *Weather) lookupForecast(event EventInfo) (int, bool) {
	forecasts, ok := w.cache.Get(event.Location)
	if !ok {
		return 0, false
	}
	day, ok := forecasts[event.Date]
	if !ok {
		return 0, false
	}
	return day.Temp(event.Metric)
}

// tooCloseToResolution blocks entries when the measurement day ends sooner
// than the configured horizon. The temperature day is approximated as
// closing at midnight UTC after the resolution date.
func (w *Weather) tooCloseToResolution(date string, now time.Time) bool {
	if w.cfg.MinHoursToResolution <= 0 {
		return false
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return true
	}
	resolution := day.AddDate(0, 0, 1)
	return resolution.Sub(now) < time.Duration(w.cfg.MinHoursToResolution)*time.Hour
}

// currentYesPrice finds the price the position would exit at: the exact
// token's outcome when still listed, otherwise the YES-outcome heuristic
// (the outcome may have been renamed or delisted).
func currentYesPrice(market types.Market, tokenID string) (decimal.Decimal, bool) {
	if o, ok := market.OutcomeByToken(tokenID); ok {
		return o.Price, true
	}
	if yes, ok := market.YesOutcome(); ok {
		return yes.Price, true
	}
	return decimal.Decimal{}, false
}
