package market

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFlattenMarket(t *testing.T) {
	t.Parallel()

	gm := GammaMarket{
		ConditionID:   "0xabc",
		Question:      "Will the highest temperature in NYC on January 15 be 45-55°F?",
		Slug:          "nyc-jan-15-45-55",
		Active:        true,
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.12","0.88"]`,
		ClobTokenIds:  `["111","222"]`,
	}

	m, err := flattenMarket(gm, "nyc-temps-jan-15")
	if err != nil {
		t.Fatalf("flattenMarket: %v", err)
	}
	if m.ConditionID != "0xabc" {
		t.Errorf("condition id = %q", m.ConditionID)
	}
	if m.EventSlug != "nyc-temps-jan-15" {
		t.Errorf("event slug = %q", m.EventSlug)
	}
	if len(m.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(m.Outcomes))
	}
	if m.Outcomes[0].Name != "Yes" || m.Outcomes[0].TokenID != "111" {
		t.Errorf("outcome[0] = %+v", m.Outcomes[0])
	}
	if !m.Outcomes[0].Price.Equal(decimal.NewFromFloat(0.12)) {
		t.Errorf("outcome[0] price = %s, want 0.12", m.Outcomes[0].Price)
	}
}

func TestFlattenMarketRejectsMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		gm   GammaMarket
	}{
		{
			name: "length mismatch",
			gm: GammaMarket{
				Outcomes:      `["Yes","No"]`,
				OutcomePrices: `["0.12"]`,
				ClobTokenIds:  `["111","222"]`,
			},
		},
		{
			name: "outcomes not json",
			gm: GammaMarket{
				Outcomes:      `Yes/No`,
				OutcomePrices: `["0.12","0.88"]`,
				ClobTokenIds:  `["111","222"]`,
			},
		},
		{
			name: "price not a number",
			gm: GammaMarket{
				Outcomes:      `["Yes","No"]`,
				OutcomePrices: `["cheap","0.88"]`,
				ClobTokenIds:  `["111","222"]`,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := flattenMarket(tc.gm, "event"); err == nil {
				t.Error("expected error for malformed market")
			}
		})
	}
}
