package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Web3Newcomer/polymarket-weather/internal/config"
	"github.com/Web3Newcomer/polymarket-weather/internal/tracker"
)

var statsWeekly bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the tracked signal record",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVarP(&statsWeekly, "weekly", "w", false, "show the 7-day summary instead of 24h")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	trk, err := tracker.Open(cfg.Store.DataDir, tracker.Options{
		TakeProfitPct: cfg.Weather.TakeProfitPct,
		StopLossPct:   cfg.Weather.StopLossPct,
	}, quiet)
	if err != nil {
		return fmt.Errorf("open signal tracker: %w", err)
	}

	if statsWeekly {
		fmt.Println(trk.WeeklySummary())
	} else {
		fmt.Println(trk.DailySummary())
	}

	if active := trk.Active(); len(active) > 0 {
		fmt.Println("Details:")
		for _, ts := range active {
			age := time.Since(time.Unix(ts.CreatedAt, 0)).Round(time.Minute)
			fmt.Printf("  %s · %s %s on %s · $%s → $%s · tracked %s\n",
				ts.SignalID[:8], ts.Location, ts.BucketName, ts.Date,
				ts.SignalPrice.StringFixed(3), ts.CurrentPrice.StringFixed(3), age)
		}
	}
	return nil
}
