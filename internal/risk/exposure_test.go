package risk

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
)

func testLedger() *Ledger {
	return NewLedger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedgerAddAndRemove(t *testing.T) {
	t.Parallel()

	l := testLedger()
	l.Add("m1", d("50"))
	l.Add("m1", d("30"))
	l.Add("m2", d("20"))

	if got := l.MarketExposure("m1"); !got.Equal(d("80")) {
		t.Errorf("m1 exposure = %s, want 80", got)
	}
	if got := l.TotalExposure(); !got.Equal(d("100")) {
		t.Errorf("total = %s, want 100", got)
	}

	l.Remove("m1", d("40"))
	if got := l.MarketExposure("m1"); !got.Equal(d("40")) {
		t.Errorf("m1 exposure after partial remove = %s, want 40", got)
	}

	l.Remove("m1", d("40"))
	if got := l.MarketExposure("m1"); !got.IsZero() {
		t.Errorf("m1 exposure after full remove = %s, want 0", got)
	}
	if _, ok := l.Stats()["m1"]; ok {
		t.Error("fully-removed market still tracked")
	}
	if got := l.TotalExposure(); !got.Equal(d("20")) {
		t.Errorf("total = %s, want 20", got)
	}
}

func TestLedgerRemoveOvershootClamps(t *testing.T) {
	t.Parallel()

	l := testLedger()
	l.Add("m1", d("50"))
	l.Remove("m1", d("100"))

	if got := l.MarketExposure("m1"); !got.IsZero() {
		t.Errorf("exposure after overshoot = %s, want 0", got)
	}
	if got := l.TotalExposure(); !got.IsZero() {
		t.Errorf("total after overshoot = %s, want 0", got)
	}

	// A second remove of the same market must stay at zero.
	l.Remove("m1", d("10"))
	if got := l.TotalExposure(); !got.IsZero() {
		t.Errorf("total after double remove = %s, want 0", got)
	}
}

func TestLedgerIgnoresNonPositiveAmounts(t *testing.T) {
	t.Parallel()

	l := testLedger()
	l.Add("m1", d("0"))
	l.Add("m1", d("-5"))
	if got := l.TotalExposure(); !got.IsZero() {
		t.Errorf("total = %s, want 0", got)
	}

	l.Add("m1", d("10"))
	l.Remove("m1", d("-3"))
	if got := l.MarketExposure("m1"); !got.Equal(d("10")) {
		t.Errorf("negative remove changed exposure: %s", got)
	}
}

func TestLedgerStatsIsACopy(t *testing.T) {
	t.Parallel()

	l := testLedger()
	l.Add("m1", d("10"))

	stats := l.Stats()
	stats["m1"] = d("999")
	if got := l.MarketExposure("m1"); !got.Equal(d("10")) {
		t.Errorf("mutating Stats() affected the ledger: %s", got)
	}
}
