// Polymarket Weather Bot — trades temperature-bucket prediction markets
// against NOAA forecasts.
//
// Architecture:
//
//	main.go               — cobra entry point: run, stats, version
//	engine/engine.go      — orchestrator: one scan cycle over feed → strategy → exchange
//	strategy/parser.go    — extracts city, date, metric, and temperature bucket from questions
//	strategy/weather.go   — the signal engine: forecast-vs-price entries, tiered exits
//	forecast/noaa.go      — NOAA (api.weather.gov) forecast client + per-scan cache
//	market/feed.go        — Gamma API snapshot of active weather events
//	exchange/client.go    — CLOB REST client: pricing, FOK order execution, rate limits
//	positions/store.go    — JSON file persistence for open positions (survives restarts)
//	risk/exposure.go      — USD exposure ledger per market
//	tracker/tracker.go    — follows every signal to resolution, win/loss record
//	notify/telegram.go    — Telegram alerts behind a per-market cooldown gate
//
// How it makes money:
//
//	Polymarket weather buckets resolve from published NOAA observations,
//	and NOAA's own forecast is the best public predictor of them. When the
//	forecast temperature falls inside a bucket whose YES side still trades
//	cheap, the bot buys the mispriced bucket and exits on stop-loss,
//	take-profit, or a near-certain price.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "weatherbot",
	Short: "Automated trader for Polymarket weather markets",
	Long: `weatherbot scans Polymarket temperature-bucket markets, matches them
against NOAA forecasts, and buys buckets the forecast says are underpriced.
It can run signal-only (Telegram alerts) or execute trades automatically.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
