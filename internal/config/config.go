// Package config defines all configuration for the weather trading bot.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via WEATHER_* environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun   bool           `mapstructure:"dry_run"`
	API      APIConfig      `mapstructure:"api"`
	Weather  WeatherConfig  `mapstructure:"weather"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// APIConfig holds Polymarket and NOAA endpoints plus L2 API credentials.
// The CLOB credentials are only needed when auto-trade is enabled; the
// signal-only mode reads public endpoints exclusively.
type APIConfig struct {
	CLOBBaseURL  string `mapstructure:"clob_base_url"`
	GammaBaseURL string `mapstructure:"gamma_base_url"`
	NOAABaseURL  string `mapstructure:"noaa_base_url"`

	ApiKey        string `mapstructure:"api_key"`
	Secret        string `mapstructure:"secret"`
	Passphrase    string `mapstructure:"passphrase"`
	FunderAddress string `mapstructure:"funder_address"`
}

// WeatherConfig tunes the forecast-vs-price strategy.
//
//   - EntryThreshold: buy YES when its price is strictly below this fraction.
//   - ExitThreshold:  sell when the price reaches this fraction (normal exit).
//   - TakeProfitPct / StopLossPct: percentage moves from entry that close a
//     position ahead of the threshold exit.
//   - MaxPositionUSD: fixed notional per entry.
//   - MaxTradesPerScan: cap on entry signals per scan cycle.
//   - Locations: watch-list of canonical city codes (NYC, Chicago, ...).
//   - MinHoursToResolution: skip markets resolving sooner than this.
//   - MinEntryPrice: dust floor; prices below it are not worth the fees.
//   - MinTickSize: venue price granularity, bounds the tradeable range.
//   - ScanInterval: time between scan cycles.
//   - SleepStartHour/SleepEndHour: daily quiet-hours window [start, end),
//     wrapping across midnight when start > end.
type WeatherConfig struct {
	AutoTrade            bool            `mapstructure:"auto_trade"`
	EntryThreshold       float64         `mapstructure:"entry_threshold"`
	ExitThreshold        float64         `mapstructure:"exit_threshold"`
	TakeProfitPct        float64         `mapstructure:"take_profit_pct"`
	StopLossPct          float64         `mapstructure:"stop_loss_pct"`
	MaxPositionUSD       decimal.Decimal `mapstructure:"max_position_usd"`
	MaxTradesPerScan     int             `mapstructure:"max_trades_per_scan"`
	Locations            []string        `mapstructure:"locations"`
	MinHoursToResolution int             `mapstructure:"min_hours_to_resolution"`
	MinEntryPrice        float64         `mapstructure:"min_entry_price"`
	MinTickSize          float64         `mapstructure:"min_tick_size"`
	ScanInterval         time.Duration   `mapstructure:"scan_interval"`
	SleepStartHour       int             `mapstructure:"sleep_start_hour"`
	SleepEndHour         int             `mapstructure:"sleep_end_hour"`
}

// TelegramConfig controls signal/trade notifications. Enabled is implied by
// a non-empty bot token.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	TopicID  string `mapstructure:"topic_id"`
}

// Enabled reports whether notifications should be sent.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// StoreConfig sets where position, cooldown, and tracker data is persisted
// (JSON files).
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus /metrics listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: WEATHER_API_KEY, WEATHER_API_SECRET,
// WEATHER_PASSPHRASE, WEATHER_TG_BOT_TOKEN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("WEATHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decimalDecodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if key := os.Getenv("WEATHER_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("WEATHER_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("WEATHER_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if token := os.Getenv("WEATHER_TG_BOT_TOKEN"); token != "" {
		cfg.Telegram.BotToken = token
	}
	if chat := os.Getenv("WEATHER_TG_CHAT_ID"); chat != "" {
		cfg.Telegram.ChatID = chat
	}
	if os.Getenv("WEATHER_DRY_RUN") == "true" || os.Getenv("WEATHER_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dry_run", true)
	v.SetDefault("api.clob_base_url", "https://clob.polymarket.com")
	v.SetDefault("api.gamma_base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("api.noaa_base_url", "https://api.weather.gov")
	v.SetDefault("weather.entry_threshold", 0.25)
	v.SetDefault("weather.exit_threshold", 0.65)
	v.SetDefault("weather.take_profit_pct", 0.50)
	v.SetDefault("weather.stop_loss_pct", 0.25)
	v.SetDefault("weather.max_position_usd", "5")
	v.SetDefault("weather.max_trades_per_scan", 3)
	v.SetDefault("weather.locations", []string{"NYC"})
	v.SetDefault("weather.min_hours_to_resolution", 2)
	v.SetDefault("weather.min_entry_price", 0.05)
	v.SetDefault("weather.min_tick_size", 0.01)
	v.SetDefault("weather.scan_interval", time.Hour)
	v.SetDefault("weather.sleep_start_hour", 23)
	v.SetDefault("weather.sleep_end_hour", 8)
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.addr", ":9090")
}

// decimalDecodeHook lets viper decode YAML strings/numbers into
// decimal.Decimal fields without going through float64.
func decimalDecodeHook() func(from, to reflect.Type, data any) (any, error) {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(decimal.Decimal{}) {
			return data, nil
		}
		switch val := data.(type) {
		case string:
			return decimal.NewFromString(val)
		case int:
			return decimal.NewFromInt(int64(val)), nil
		case int64:
			return decimal.NewFromInt(val), nil
		case float64:
			return decimal.NewFromFloat(val), nil
		default:
			return data, nil
		}
	}
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.API.GammaBaseURL == "" {
		return fmt.Errorf("api.gamma_base_url is required")
	}
	if c.API.NOAABaseURL == "" {
		return fmt.Errorf("api.noaa_base_url is required")
	}
	w := c.Weather
	if w.EntryThreshold <= 0 || w.EntryThreshold >= 1 {
		return fmt.Errorf("weather.entry_threshold must be in (0, 1)")
	}
	if w.ExitThreshold <= 0 || w.ExitThreshold >= 1 {
		return fmt.Errorf("weather.exit_threshold must be in (0, 1)")
	}
	if w.TakeProfitPct <= 0 {
		return fmt.Errorf("weather.take_profit_pct must be > 0")
	}
	if w.StopLossPct <= 0 {
		return fmt.Errorf("weather.stop_loss_pct must be > 0")
	}
	if !w.MaxPositionUSD.IsPositive() {
		return fmt.Errorf("weather.max_position_usd must be > 0")
	}
	if w.MaxTradesPerScan <= 0 {
		return fmt.Errorf("weather.max_trades_per_scan must be > 0")
	}
	if len(w.Locations) == 0 {
		return fmt.Errorf("weather.locations must not be empty")
	}
	if w.MinTickSize <= 0 || w.MinTickSize >= 0.5 {
		return fmt.Errorf("weather.min_tick_size must be in (0, 0.5)")
	}
	if w.ScanInterval <= 0 {
		return fmt.Errorf("weather.scan_interval must be > 0")
	}
	if w.SleepStartHour < 0 || w.SleepStartHour > 23 || w.SleepEndHour < 0 || w.SleepEndHour > 23 {
		return fmt.Errorf("weather.sleep_start_hour/sleep_end_hour must be in [0, 23]")
	}
	if w.AutoTrade && !c.DryRun && c.API.ApiKey == "" {
		return fmt.Errorf("api.api_key is required for live auto-trade (set WEATHER_API_KEY)")
	}
	return nil
}
