package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Web3Newcomer/polymarket-weather/pkg/types"
)

// FormatSignal renders a signal-only alert (auto-trade disabled): the
// opportunity, the forecast backing it, and a link to act on manually.
func FormatSignal(sig types.WeatherSignal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌤 *Weather Signal: %s*\n\n", sig.Action)
	fmt.Fprintf(&b, "%s\n\n", sig.MarketQuestion)
	fmt.Fprintf(&b, "📍 %s on %s\n", sig.Location, sig.Date)
	fmt.Fprintf(&b, "🌡 Forecast: %d°F → bucket %s\n", sig.ForecastTemp, sig.BucketName)
	fmt.Fprintf(&b, "💵 Price: $%s\n", sig.Price.StringFixed(3))
	fmt.Fprintf(&b, "💡 %s\n", sig.Reasoning)
	if sig.MarketURL != "" {
		fmt.Fprintf(&b, "\n[View market](%s)", sig.MarketURL)
	}
	return b.String()
}

// FormatEntryTrade renders a combined signal + executed entry message.
func FormatEntryTrade(sig types.WeatherSignal, shares, avgPrice decimal.Decimal, dryRun bool) string {
	var b strings.Builder
	if dryRun {
		b.WriteString("🧪 *DRY-RUN Entry*\n\n")
	} else {
		b.WriteString("✅ *Entry Filled*\n\n")
	}
	fmt.Fprintf(&b, "%s\n\n", sig.MarketQuestion)
	fmt.Fprintf(&b, "📍 %s on %s · forecast %d°F in %s\n", sig.Location, sig.Date, sig.ForecastTemp, sig.BucketName)
	fmt.Fprintf(&b, "💵 Bought %s shares @ $%s ($%s)\n", shares.StringFixed(2), avgPrice.StringFixed(3), sig.Amount.StringFixed(2))
	if sig.MarketURL != "" {
		fmt.Fprintf(&b, "\n[View market](%s)", sig.MarketURL)
	}
	return b.String()
}

// FormatExitTrade renders a closed-position message with realized PnL.
func FormatExitTrade(sig types.WeatherSignal, pos types.WeatherPosition, avgPrice decimal.Decimal, dryRun bool) string {
	proceeds := pos.Shares.Mul(avgPrice)
	pnl := proceeds.Sub(pos.Cost)

	emoji := "🔴"
	if pnl.Sign() >= 0 {
		emoji = "🟢"
	}

	var b strings.Builder
	if dryRun {
		fmt.Fprintf(&b, "🧪 *DRY-RUN Exit (%s)*\n\n", sig.ExitType)
	} else {
		fmt.Fprintf(&b, "%s *Exit: %s*\n\n", emoji, sig.ExitType)
	}
	fmt.Fprintf(&b, "%s\n\n", pos.MarketQuestion)
	fmt.Fprintf(&b, "📍 %s on %s · %s\n", pos.Location, pos.Date, pos.BucketName)
	fmt.Fprintf(&b, "💵 Sold %s shares @ $%s\n", pos.Shares.StringFixed(2), avgPrice.StringFixed(3))
	fmt.Fprintf(&b, "📈 Entry $%s → PnL $%s\n", pos.EntryPrice.StringFixed(3), pnl.StringFixed(2))
	fmt.Fprintf(&b, "💡 %s", sig.Reasoning)
	return b.String()
}
