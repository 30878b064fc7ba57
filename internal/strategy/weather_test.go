package strategy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Web3Newcomer/polymarket-weather/internal/config"
	"github.com/Web3Newcomer/polymarket-weather/internal/forecast"
	"github.com/Web3Newcomer/polymarket-weather/pkg/types"
)

type fakeForecasts struct {
	byLocation map[string]forecast.Forecast

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeForecasts) GetForecast(_ context.Context, location string) forecast.Forecast {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[location]++
	f.mu.Unlock()
	return f.byLocation[location]
}

type fakePrices struct {
	byToken map[string]decimal.Decimal
}

func (f *fakePrices) FetchPrice(_ context.Context, tokenID string, _ types.Side) (decimal.Decimal, bool) {
	p, ok := f.byToken[tokenID]
	return p, ok
}

func testWeatherConfig() config.WeatherConfig {
	return config.WeatherConfig{
		EntryThreshold:       0.15,
		ExitThreshold:        0.85,
		TakeProfitPct:        0.50,
		StopLossPct:          0.25,
		MaxPositionUSD:       decimal.NewFromInt(10),
		MaxTradesPerScan:     3,
		Locations:            []string{"NYC", "Chicago"},
		MinHoursToResolution: 2,
		MinEntryPrice:        0.02,
		MinTickSize:          0.01,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// futureQuestion builds a bucket-market question dated days ahead of now,
// and returns it with the resolution date in YYYY-MM-DD form.
func futureQuestion(city, bucketPhrase string, daysAhead int) (string, string) {
	d := time.Now().UTC().AddDate(0, 0, daysAhead)
	q := fmt.Sprintf("Will the highest temperature in %s on %s %d be %s?",
		city, d.Month().String(), d.Day(), bucketPhrase)
	return q, d.Format("2006-01-02")
}

func bucketMarket(conditionID, eventSlug, question, yesToken string, yesPrice float64) types.Market {
	return types.Market{
		ConditionID: conditionID,
		Question:    question,
		Slug:        conditionID,
		EventSlug:   eventSlug,
		Active:      true,
		Outcomes: []types.Outcome{
			{TokenID: yesToken, Name: "Yes", Price: decimal.NewFromFloat(yesPrice)},
			{TokenID: yesToken + "-no", Name: "No", Price: decimal.NewFromFloat(1 - yesPrice)},
		},
	}
}

func forecastFor(date string, high int) forecast.Forecast {
	h := high
	return forecast.Forecast{date: forecast.DayForecast{High: &h}}
}

func TestScanEntriesEmitsBuyOnUnderpricedBucket(t *testing.T) {
	t.Parallel()

	q, date := futureQuestion("NYC", "45-55°F", 3)
	markets := []types.Market{bucketMarket("cond-1", "nyc-temps", q, "tok-1", 0.10)}

	w := NewWeather(testWeatherConfig(), &fakeForecasts{
		byLocation: map[string]forecast.Forecast{"NYC": forecastFor(date, 50)},
	}, nil, testLogger())

	signals := w.ScanEntries(context.Background(), markets)
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	sig := signals[0]
	if sig.Action != types.BUY {
		t.Errorf("action = %q, want BUY", sig.Action)
	}
	if sig.MarketID != "cond-1" || sig.TokenID != "tok-1" {
		t.Errorf("signal points at %s/%s, want cond-1/tok-1", sig.MarketID, sig.TokenID)
	}
	if sig.ForecastTemp != 50 {
		t.Errorf("forecast temp = %d, want 50", sig.ForecastTemp)
	}
	if sig.BucketName != "45-55°F" {
		t.Errorf("bucket name = %q, want 45-55°F", sig.BucketName)
	}
	if !sig.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("amount = %s, want 10", sig.Amount)
	}
	if sig.ExitType != types.ExitNone {
		t.Errorf("entry signal carries exit type %q", sig.ExitType)
	}
}

func TestScanEntriesSuppression(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		market func() types.Market
		cfg    func(c config.WeatherConfig) config.WeatherConfig
		temps  map[string]int // location → forecast high
	}{
		{
			name: "forecast outside bucket",
			market: func() types.Market {
				q, _ := futureQuestion("NYC", "45-55°F", 3)
				return bucketMarket("c", "e", q, "t", 0.10)
			},
			temps: map[string]int{"NYC": 60},
		},
		{
			name: "price at entry threshold",
			market: func() types.Market {
				q, _ := futureQuestion("NYC", "45-55°F", 3)
				return bucketMarket("c", "e", q, "t", 0.15)
			},
			temps: map[string]int{"NYC": 50},
		},
		{
			name: "location off watch list",
			market: func() types.Market {
				q, _ := futureQuestion("Miami", "75-85°F", 3)
				return bucketMarket("c", "e", q, "t", 0.10)
			},
			temps: map[string]int{"Miami": 80},
		},
		{
			name: "not a weather market",
			market: func() types.Market {
				return bucketMarket("c", "e", "Will ETH close above $5000 on June 30?", "t", 0.10)
			},
		},
		{
			name: "below min entry price",
			market: func() types.Market {
				q, _ := futureQuestion("NYC", "45-55°F", 3)
				return bucketMarket("c", "e", q, "t", 0.015)
			},
			temps: map[string]int{"NYC": 50},
		},
		{
			name: "resolves too soon",
			market: func() types.Market {
				q, _ := futureQuestion("NYC", "45-55°F", 1)
				return bucketMarket("c", "e", q, "t", 0.10)
			},
			cfg: func(c config.WeatherConfig) config.WeatherConfig {
				c.MinHoursToResolution = 72
				return c
			},
			temps: map[string]int{"NYC": 50},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testWeatherConfig()
			if tc.cfg != nil {
				cfg = tc.cfg(cfg)
			}
			market := tc.market()

			byLoc := make(map[string]forecast.Forecast)
			if event, ok := ParseWeatherEvent(market.Question, time.Now().UTC()); ok {
				if temp, ok := tc.temps[event.Location]; ok {
					byLoc[event.Location] = forecastFor(event.Date, temp)
				}
			}

			w := NewWeather(cfg, &fakeForecasts{byLocation: byLoc}, nil, testLogger())
			if signals := w.ScanEntries(context.Background(), []types.Market{market}); len(signals) != 0 {
				t.Errorf("got %d signals, want 0: %+v", len(signals), signals)
			}
		})
	}
}

func TestScanEntriesRespectsTradeCap(t *testing.T) {
	t.Parallel()

	cfg := testWeatherConfig()
	cfg.MaxTradesPerScan = 1

	q1, date := futureQuestion("NYC", "45-55°F", 3)
	q2, _ := futureQuestion("NYC", "40-60°F", 3)
	markets := []types.Market{
		bucketMarket("c1", "nyc-temps", q1, "t1", 0.10),
		bucketMarket("c2", "nyc-temps", q2, "t2", 0.08),
	}

	w := NewWeather(cfg, &fakeForecasts{
		byLocation: map[string]forecast.Forecast{"NYC": forecastFor(date, 50)},
	}, nil, testLogger())

	signals := w.ScanEntries(context.Background(), markets)
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1 (trade cap)", len(signals))
	}
	if signals[0].MarketID != "c1" {
		t.Errorf("first-seen market should win the cap, got %s", signals[0].MarketID)
	}
}

func TestScanEntriesLivePriceOverridesSnapshot(t *testing.T) {
	t.Parallel()

	q, date := futureQuestion("NYC", "45-55°F", 3)
	markets := []types.Market{bucketMarket("c1", "e", q, "t1", 0.10)}
	forecasts := &fakeForecasts{
		byLocation: map[string]forecast.Forecast{"NYC": forecastFor(date, 50)},
	}

	// Live price above the threshold suppresses the snapshot-cheap entry.
	w := NewWeather(testWeatherConfig(), forecasts,
		&fakePrices{byToken: map[string]decimal.Decimal{"t1": decimal.NewFromFloat(0.40)}},
		testLogger())
	if signals := w.ScanEntries(context.Background(), markets); len(signals) != 0 {
		t.Fatalf("live price 0.40 should suppress entry, got %d signals", len(signals))
	}

	// Live price under the threshold is what the signal carries.
	w = NewWeather(testWeatherConfig(), forecasts,
		&fakePrices{byToken: map[string]decimal.Decimal{"t1": decimal.NewFromFloat(0.07)}},
		testLogger())
	signals := w.ScanEntries(context.Background(), markets)
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	if !signals[0].Price.Equal(decimal.NewFromFloat(0.07)) {
		t.Errorf("signal price = %s, want live 0.07", signals[0].Price)
	}
}

func TestScanEntriesFetchesForecastOncePerLocation(t *testing.T) {
	t.Parallel()

	q1, date := futureQuestion("NYC", "45-55°F", 3)
	q2, _ := futureQuestion("NYC", "56-65°F", 3)
	markets := []types.Market{
		bucketMarket("c1", "nyc-temps", q1, "t1", 0.10),
		bucketMarket("c2", "nyc-other", q2, "t2", 0.10),
	}

	forecasts := &fakeForecasts{
		byLocation: map[string]forecast.Forecast{"NYC": forecastFor(date, 50)},
	}
	w := NewWeather(testWeatherConfig(), forecasts, nil, testLogger())

	w.ScanEntries(context.Background(), markets)
	if forecasts.calls["NYC"] != 1 {
		t.Errorf("NYC fetched %d times in one scan, want 1", forecasts.calls["NYC"])
	}

	// A second scan without ClearCache reuses the cached forecast.
	w.ScanEntries(context.Background(), markets)
	if forecasts.calls["NYC"] != 1 {
		t.Errorf("NYC fetched %d times across cached scans, want 1", forecasts.calls["NYC"])
	}

	w.ClearCache()
	w.ScanEntries(context.Background(), markets)
	if forecasts.calls["NYC"] != 2 {
		t.Errorf("NYC fetched %d times after cache clear, want 2", forecasts.calls["NYC"])
	}
}

func TestCheckSafeguards(t *testing.T) {
	t.Parallel()

	w := NewWeather(testWeatherConfig(), &fakeForecasts{}, nil, testLogger())

	cases := []struct {
		price float64
		want  bool
	}{
		{0.001, false},
		{0.999, false},
		{0.01, true},
		{0.99, true},
		{0.50, true},
	}
	for _, tc := range cases {
		ok, reason := w.CheckSafeguards(decimal.NewFromFloat(tc.price))
		if ok != tc.want {
			t.Errorf("CheckSafeguards(%v) = %v (%s), want %v", tc.price, ok, reason, tc.want)
		}
		if !ok && reason == "" {
			t.Errorf("CheckSafeguards(%v) rejected without a reason", tc.price)
		}
	}
}

func TestScanExitsPriority(t *testing.T) {
	t.Parallel()

	pos := types.WeatherPosition{
		MarketID:   "c1",
		TokenID:    "t1",
		EntryPrice: decimal.NewFromFloat(0.10),
		Shares:     decimal.NewFromInt(100),
		Location:   "NYC",
		Date:       "2026-09-05",
		BucketName: "45-55°F",
	}

	cases := []struct {
		name         string
		currentPrice float64
		wantExit     types.ExitType
	}{
		// 0.90 is both a +800% gain and past the 0.85 threshold; take
		// profit outranks the threshold exit. 0.07 is -30% against the
		// 25% stop; 0.16 is +60% against the 50% target; 0.11 is +10%,
		// below every line.
		{"take profit beats threshold", 0.90, types.ExitTakeProfit},
		{"stop loss", 0.07, types.ExitStopLoss},
		{"take profit", 0.16, types.ExitTakeProfit},
		{"no exit", 0.11, types.ExitNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := NewWeather(testWeatherConfig(), &fakeForecasts{}, nil, testLogger())
			markets := []types.Market{{
				ConditionID: "c1",
				Question:    "Will the highest temperature in NYC on September 5 be 45-55°F?",
				Outcomes: []types.Outcome{
					{TokenID: "t1", Name: "Yes", Price: decimal.NewFromFloat(tc.currentPrice)},
				},
			}}

			signals := w.ScanExits(context.Background(), []types.WeatherPosition{pos}, markets)
			if tc.wantExit == types.ExitNone {
				if len(signals) != 0 {
					t.Fatalf("got %d signals, want 0", len(signals))
				}
				return
			}
			if len(signals) != 1 {
				t.Fatalf("got %d signals, want 1", len(signals))
			}
			sig := signals[0]
			if sig.ExitType != tc.wantExit {
				t.Errorf("exit type = %q, want %q", sig.ExitType, tc.wantExit)
			}
			if sig.Action != types.SELL {
				t.Errorf("action = %q, want SELL", sig.Action)
			}
		})
	}
}

func TestScanExitsStopLossBeatsThreshold(t *testing.T) {
	t.Parallel()

	// Price 0.63 is both a -30% loss from entry 0.90 and past a 0.60
	// exit threshold; the stop loss must win.
	cfg := testWeatherConfig()
	cfg.ExitThreshold = 0.60
	w := NewWeather(cfg, &fakeForecasts{}, nil, testLogger())

	pos := types.WeatherPosition{
		MarketID:   "c1",
		TokenID:    "t1",
		EntryPrice: decimal.NewFromFloat(0.90),
		Shares:     decimal.NewFromInt(10),
	}
	markets := []types.Market{{
		ConditionID: "c1",
		Outcomes: []types.Outcome{
			{TokenID: "t1", Name: "Yes", Price: decimal.NewFromFloat(0.63)},
		},
	}}

	signals := w.ScanExits(context.Background(), []types.WeatherPosition{pos}, markets)
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	if signals[0].ExitType != types.ExitStopLoss {
		t.Errorf("exit type = %q, want %q", signals[0].ExitType, types.ExitStopLoss)
	}
}

func TestScanExitsThreshold(t *testing.T) {
	t.Parallel()

	cfg := testWeatherConfig()
	cfg.TakeProfitPct = 10 // disable take profit so the threshold rule fires
	w := NewWeather(cfg, &fakeForecasts{}, nil, testLogger())

	pos := types.WeatherPosition{
		MarketID:   "c1",
		TokenID:    "t1",
		EntryPrice: decimal.NewFromFloat(0.60),
		Shares:     decimal.NewFromInt(10),
	}
	markets := []types.Market{{
		ConditionID: "c1",
		Outcomes: []types.Outcome{
			{TokenID: "t1", Name: "Yes", Price: decimal.NewFromFloat(0.85)},
		},
	}}

	signals := w.ScanExits(context.Background(), []types.WeatherPosition{pos}, markets)
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	if signals[0].ExitType != types.ExitPriceThreshold {
		t.Errorf("exit type = %q, want %q", signals[0].ExitType, types.ExitPriceThreshold)
	}
}

func TestScanExitsSkipsMissingMarket(t *testing.T) {
	t.Parallel()

	w := NewWeather(testWeatherConfig(), &fakeForecasts{}, nil, testLogger())
	pos := types.WeatherPosition{
		MarketID:   "gone",
		TokenID:    "t1",
		EntryPrice: decimal.NewFromFloat(0.10),
	}
	if signals := w.ScanExits(context.Background(), []types.WeatherPosition{pos}, nil); len(signals) != 0 {
		t.Errorf("position without a market snapshot should not exit, got %d signals", len(signals))
	}
}
