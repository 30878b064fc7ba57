package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestOutcomeNameMatching(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		isYes bool
		isNo  bool
	}{
		{"Yes", true, false},
		{"YES", true, false},
		{" yes ", true, false},
		{"No", false, true},
		{"45-55°F", false, false},
	}
	for _, tc := range cases {
		o := Outcome{Name: tc.name}
		if o.IsYes() != tc.isYes {
			t.Errorf("IsYes(%q) = %v, want %v", tc.name, o.IsYes(), tc.isYes)
		}
		if o.IsNo() != tc.isNo {
			t.Errorf("IsNo(%q) = %v, want %v", tc.name, o.IsNo(), tc.isNo)
		}
	}
}

func TestYesOutcome(t *testing.T) {
	t.Parallel()

	labeled := Market{Outcomes: []Outcome{
		{TokenID: "n", Name: "No", Price: decimal.NewFromFloat(0.9)},
		{TokenID: "y", Name: "Yes", Price: decimal.NewFromFloat(0.1)},
	}}
	yes, ok := labeled.YesOutcome()
	if !ok || yes.TokenID != "y" {
		t.Errorf("labeled market: got %+v, %v", yes, ok)
	}

	// Without a YES label the highest-priced outcome is assumed.
	unlabeled := Market{Outcomes: []Outcome{
		{TokenID: "a", Name: "45-55°F", Price: decimal.NewFromFloat(0.3)},
		{TokenID: "b", Name: "56-65°F", Price: decimal.NewFromFloat(0.7)},
	}}
	yes, ok = unlabeled.YesOutcome()
	if !ok || yes.TokenID != "b" {
		t.Errorf("unlabeled market: got %+v, %v", yes, ok)
	}

	if _, ok := (Market{}).YesOutcome(); ok {
		t.Error("market with no outcomes should report no YES side")
	}
}

func TestMarketURL(t *testing.T) {
	t.Parallel()

	m := Market{Slug: "nyc-45-55", EventSlug: "nyc-temps-sep-1"}
	if got := m.URL(); got != "https://polymarket.com/event/nyc-temps-sep-1/nyc-45-55" {
		t.Errorf("URL = %q", got)
	}

	standalone := Market{Slug: "nyc-45-55"}
	if got := standalone.URL(); got != "https://polymarket.com/event/nyc-45-55" {
		t.Errorf("standalone URL = %q", got)
	}
}

func TestWeatherPositionJSONPreservesDecimals(t *testing.T) {
	t.Parallel()

	pos := WeatherPosition{
		MarketID:   "m1",
		EntryPrice: decimal.RequireFromString("0.115"),
		Shares:     decimal.RequireFromString("86.9565217391304348"),
		Cost:       decimal.RequireFromString("10"),
	}

	data, err := json.Marshal(pos)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got WeatherPosition
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.EntryPrice.Equal(pos.EntryPrice) || !got.Shares.Equal(pos.Shares) || !got.Cost.Equal(pos.Cost) {
		t.Errorf("decimals drifted: %+v", got)
	}
}
