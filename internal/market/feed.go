// Package market fetches the tradeable market snapshot from the
// Polymarket Gamma API.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/Web3Newcomer/polymarket-weather/internal/config"
	"github.com/Web3Newcomer/polymarket-weather/pkg/types"
)

// GammaEvent is the JSON shape of one event from the Gamma /events endpoint.
// An event groups the bucket markets of one question family (e.g. every
// temperature bucket for one city and day).
type GammaEvent struct {
	ID      string        `json:"id"`
	Slug    string        `json:"slug"`
	Title   string        `json:"title"`
	Active  bool          `json:"active"`
	Closed  bool          `json:"closed"`
	Markets []GammaMarket `json:"markets"`
}

// GammaMarket is the JSON shape of one market inside a Gamma event.
// Outcomes, OutcomePrices, and ClobTokenIds are parallel JSON-encoded
// string arrays; the three must decode to the same length to be usable.
type GammaMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	ConditionID   string `json:"conditionId"`
	Slug          string `json:"slug"`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
	ClobTokenIds  string `json:"clobTokenIds"`
}

// Feed polls the Gamma API for active weather-tagged events and flattens
// them into the snapshot the strategy scans.
type Feed struct {
	httpClient *resty.Client
	logger     *slog.Logger
	tagSlug    string
}

// NewFeed creates a Gamma market feed.
func NewFeed(cfg config.APIConfig, logger *slog.Logger) *Feed {
	client := resty.New().
		SetBaseURL(cfg.GammaBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Feed{
		httpClient: client,
		logger:     logger.With("component", "feed"),
		tagSlug:    "weather",
	}
}

// FetchMarkets returns the current snapshot of active weather markets.
// Markets with malformed outcome data are skipped with a warning, never
// failing the whole fetch.
func (f *Feed) FetchMarkets(ctx context.Context) ([]types.Market, error) {
	events, err := f.fetchEvents(ctx)
	if err != nil {
		return nil, err
	}

	var markets []types.Market
	skipped := 0
	for _, event := range events {
		if event.Closed {
			continue
		}
		for _, gm := range event.Markets {
			if gm.Closed || !gm.Active {
				continue
			}
			m, err := flattenMarket(gm, event.Slug)
			if err != nil {
				f.logger.Warn("skipping malformed market", "slug", gm.Slug, "error", err)
				skipped++
				continue
			}
			markets = append(markets, m)
		}
	}

	f.logger.Info("market snapshot fetched",
		"events", len(events),
		"markets", len(markets),
		"skipped", skipped,
	)
	return markets, nil
}

func (f *Feed) fetchEvents(ctx context.Context) ([]GammaEvent, error) {
	var allEvents []GammaEvent
	offset := 0
	limit := 100

	for {
		var page []GammaEvent
		resp, err := f.httpClient.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"limit":    strconv.Itoa(limit),
				"offset":   strconv.Itoa(offset),
				"active":   "true",
				"closed":   "false",
				"tag_slug": f.tagSlug,
			}).
			SetResult(&page).
			Get("/events")
		if err != nil {
			return nil, fmt.Errorf("fetch events page %d: %w", offset, err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("fetch events: status %d", resp.StatusCode())
		}

		allEvents = append(allEvents, page...)

		if len(page) < limit {
			break
		}
		offset += limit
	}

	return allEvents, nil
}

// flattenMarket converts the Gamma wire shape into the internal Market,
// zipping the three parallel JSON-string arrays into outcomes.
func flattenMarket(gm GammaMarket, eventSlug string) (types.Market, error) {
	var names, prices, tokenIDs []string
	if err := json.Unmarshal([]byte(gm.Outcomes), &names); err != nil {
		return types.Market{}, fmt.Errorf("decode outcomes: %w", err)
	}
	if err := json.Unmarshal([]byte(gm.OutcomePrices), &prices); err != nil {
		return types.Market{}, fmt.Errorf("decode outcome prices: %w", err)
	}
	if err := json.Unmarshal([]byte(gm.ClobTokenIds), &tokenIDs); err != nil {
		return types.Market{}, fmt.Errorf("decode token ids: %w", err)
	}
	if len(names) != len(prices) || len(names) != len(tokenIDs) {
		return types.Market{}, fmt.Errorf("outcome arrays disagree: %d names, %d prices, %d tokens",
			len(names), len(prices), len(tokenIDs))
	}

	outcomes := make([]types.Outcome, 0, len(names))
	for i := range names {
		price, err := decimal.NewFromString(prices[i])
		if err != nil {
			return types.Market{}, fmt.Errorf("decode price %q: %w", prices[i], err)
		}
		outcomes = append(outcomes, types.Outcome{
			TokenID: tokenIDs[i],
			Name:    names[i],
			Price:   price,
		})
	}

	return types.Market{
		ConditionID: gm.ConditionID,
		Question:    gm.Question,
		Slug:        gm.Slug,
		EventSlug:   eventSlug,
		Active:      gm.Active,
		Outcomes:    outcomes,
	}, nil
}
