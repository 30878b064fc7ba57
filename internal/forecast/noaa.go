// Package forecast implements the NOAA (api.weather.gov) forecast client
// and the per-scan forecast cache.
//
// NOAA publishes forecasts per grid cell, so a lookup is two requests:
// GET /points/{lat},{lon} resolves the grid forecast URL, then fetching
// that URL returns day/night periods. Daytime periods carry the daily
// high, nighttime periods the daily low.
//
// Failures degrade to an empty forecast — the strategy skips every market
// that needs the missing location and retries next scan.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Web3Newcomer/polymarket-weather/pkg/types"
)

// Station is a NOAA observation point matching a Polymarket weather market.
type Station struct {
	Lat  float64
	Lon  float64
	Name string
}

// Stations maps canonical city codes to the airport stations Polymarket
// weather markets resolve against.
var Stations = map[string]Station{
	"NYC":     {Lat: 40.7769, Lon: -73.8740, Name: "New York City (LaGuardia)"},
	"Chicago": {Lat: 41.9742, Lon: -87.9073, Name: "Chicago (O'Hare)"},
	"Seattle": {Lat: 47.4502, Lon: -122.3088, Name: "Seattle (Sea-Tac)"},
	"Atlanta": {Lat: 33.6407, Lon: -84.4277, Name: "Atlanta (Hartsfield)"},
	"Dallas":  {Lat: 32.8998, Lon: -97.0403, Name: "Dallas (DFW)"},
	"Miami":   {Lat: 25.7959, Lon: -80.2870, Name: "Miami (MIA)"},
}

// DayForecast holds the forecast temperatures for one calendar day.
// A nil field means NOAA published no period for that half of the day yet.
type DayForecast struct {
	High *int
	Low  *int
}

// Temp returns the temperature for the requested metric.
func (d DayForecast) Temp(metric types.TempMetric) (int, bool) {
	switch metric {
	case types.MetricLow:
		if d.Low == nil {
			return 0, false
		}
		return *d.Low, true
	default:
		if d.High == nil {
			return 0, false
		}
		return *d.High, true
	}
}

// Forecast maps "YYYY-MM-DD" date strings to that day's temperatures.
type Forecast map[string]DayForecast

// pointsResponse is the JSON shape of GET /points/{lat},{lon}.
type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

// forecastResponse is the JSON shape of the grid forecast endpoint.
type forecastResponse struct {
	Properties struct {
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

type forecastPeriod struct {
	StartTime   string `json:"startTime"`
	Temperature int    `json:"temperature"`
	IsDaytime   bool   `json:"isDaytime"`
}

// Client fetches forecasts from the NOAA API.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a NOAA forecast client with retry and an identifying
// User-Agent (NOAA requires one).
func NewClient(baseURL string, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(5*time.Second).
		SetHeader("User-Agent", "PolymarketWeatherBot/1.0").
		SetHeader("Accept", "application/geo+json")

	return &Client{
		http:   httpClient,
		logger: logger.With("component", "noaa"),
	}
}

// GetForecast fetches the multi-day forecast for a city code.
// Returns an empty Forecast on any failure; never an error — absent data
// is an expected outcome the strategy tolerates per location.
func (c *Client) GetForecast(ctx context.Context, location string) Forecast {
	station, ok := Stations[location]
	if !ok {
		c.logger.Warn("unknown location", "location", location)
		return Forecast{}
	}

	var points pointsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&points).
		Get(fmt.Sprintf("/points/%.4f,%.4f", station.Lat, station.Lon))
	if err != nil || resp.StatusCode() != http.StatusOK || points.Properties.Forecast == "" {
		c.logger.Warn("NOAA grid lookup failed", "location", location, "error", err)
		return Forecast{}
	}

	var fc forecastResponse
	resp, err = c.http.R().
		SetContext(ctx).
		SetResult(&fc).
		Get(points.Properties.Forecast)
	if err != nil || resp.StatusCode() != http.StatusOK {
		c.logger.Warn("NOAA forecast fetch failed", "location", location, "error", err)
		return Forecast{}
	}

	forecasts := parsePeriods(fc.Properties.Periods)
	c.logger.Info("NOAA forecast fetched", "location", location, "days", len(forecasts))
	return forecasts
}

// parsePeriods folds NOAA day/night periods into per-date high/low pairs.
func parsePeriods(periods []forecastPeriod) Forecast {
	forecasts := make(Forecast)
	for _, p := range periods {
		if len(p.StartTime) < 10 {
			continue
		}
		date := p.StartTime[:10]
		day := forecasts[date]
		temp := p.Temperature
		if p.IsDaytime {
			day.High = &temp
		} else {
			day.Low = &temp
		}
		forecasts[date] = day
	}
	return forecasts
}
