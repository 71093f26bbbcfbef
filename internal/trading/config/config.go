package config

import (
	"fmt"
	"strings"
	"time"

	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/pkg/config"
	"golang-orb-trader/pkg/utils"

	"github.com/go-playground/validator/v10"
)

// Trading holds the engine loop configuration.
type Trading struct {
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	TickTimeout       time.Duration `mapstructure:"tick_timeout" validate:"gt=0"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	ScanCron          string        `mapstructure:"scan_cron"`
	ScanTimeout       time.Duration `mapstructure:"scan_timeout"`
	AuthQuarantine    time.Duration `mapstructure:"auth_quarantine"`
	MaxActiveTickers  int           `mapstructure:"max_active_tickers" validate:"gte=1,lte=20"`
	MaxConcurrentData int           `mapstructure:"max_concurrent_data" validate:"gte=1"`
}

// Session holds the intraday schedule in exchange local time.
type Session struct {
	TimeZone     string   `mapstructure:"time_zone"`
	Open         string   `mapstructure:"open"`
	RangeWindow  string   `mapstructure:"range_window"`
	EntryCutoff  string   `mapstructure:"entry_cutoff"`
	Checkpoint   string   `mapstructure:"checkpoint"`
	ExtendedEnd  string   `mapstructure:"extended_end"`
	ReentryStart string   `mapstructure:"reentry_start"`
	ReentryEnd   string   `mapstructure:"reentry_end"`
	Holidays     []string `mapstructure:"holidays"`
}

// Scanner holds the qualification thresholds.
type Scanner struct {
	MinRVOL           float64  `mapstructure:"min_rvol"`
	MinChangePct      float64  `mapstructure:"min_change_pct"`
	MinAvgVolume      float64  `mapstructure:"min_avg_volume"`
	MinPrice          float64  `mapstructure:"min_price"`
	MaxFloatMillions  float64  `mapstructure:"max_float_millions"`
	TopN              int      `mapstructure:"top_n" validate:"gte=1"`
	AvgVolumePeriod   int      `mapstructure:"avg_volume_period"`
	LookbackSessions  int      `mapstructure:"lookback_sessions"`
	HistoryDays       int      `mapstructure:"history_days"`
	Exchanges         []string `mapstructure:"exchanges"`
	IndexSymbol       string   `mapstructure:"index_symbol"`
	IndexSMAPeriod    int      `mapstructure:"index_sma_period"`
	IndexMinBars      int      `mapstructure:"index_min_bars"`
	FallbackSymbols   []string `mapstructure:"fallback_symbols"`
	FallbackReuseDays int      `mapstructure:"fallback_reuse_days"`
}

// Risk holds the per-account risk limits and the entry filters.
type Risk struct {
	MaxTradesPerDay       int     `mapstructure:"max_trades_per_day" validate:"gte=1"`
	DailyLossLimitPct     float64 `mapstructure:"daily_loss_limit_pct" validate:"gt=0,lte=100"`
	TopRankRiskPct        float64 `mapstructure:"top_rank_risk_pct" validate:"gt=0,lte=100"`
	AggressiveRiskPct     float64 `mapstructure:"aggressive_risk_pct" validate:"gt=0,lte=100"`
	TierRiskPct           float64 `mapstructure:"tier_risk_pct" validate:"gt=0,lte=100"`
	MaxTieredRank         int     `mapstructure:"max_tiered_rank"`
	LowVolatilityMax      float64 `mapstructure:"low_volatility_max"`
	ShortsOnlyAbove       float64 `mapstructure:"shorts_only_above"`
	VolatilitySymbol      string  `mapstructure:"volatility_symbol"`
	// The proxy ETF is read when the index itself has no print.
	VolatilityProxySymbol string  `mapstructure:"volatility_proxy_symbol"`
	VolatilityProxyFactor float64 `mapstructure:"volatility_proxy_factor" validate:"gt=0"`
	VolatilityProxyMin    float64 `mapstructure:"volatility_proxy_min" validate:"gte=0"`
	VolatilityProxyMax    float64 `mapstructure:"volatility_proxy_max" validate:"gtefield=VolatilityProxyMin"`
	DefaultVolatility     float64 `mapstructure:"default_volatility"`
	CoolOffGapPct         float64 `mapstructure:"cool_off_gap_pct"`
	LowVolumeRatio        float64 `mapstructure:"low_volume_ratio"`
	VWAPLookback          int     `mapstructure:"vwap_lookback"`
	MinVolumeRatio        float64 `mapstructure:"min_volume_ratio"`
	VolumeLookback        int     `mapstructure:"volume_lookback"`
	MinConfidence         float64 `mapstructure:"min_confidence"`
	ExtendR               float64 `mapstructure:"extend_r"`
	TrailEMAPeriod        int     `mapstructure:"trail_ema_period"`
	MaxEntriesPerSymbol   int     `mapstructure:"max_entries_per_symbol"`
}

// Alpaca holds the broker and market data endpoints.
type Alpaca struct {
	DataURL             string `mapstructure:"data_url" validate:"url"`
	PaperURL            string `mapstructure:"paper_url" validate:"url"`
	LiveURL             string `mapstructure:"live_url" validate:"url"`
	Feed                string `mapstructure:"feed" validate:"oneof=iex sip"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	DataKeyID           string `mapstructure:"data_key_id"`
	DataSecretKey       string `mapstructure:"data_secret_key"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string        `mapstructure:"api_key"`
	Model               string        `mapstructure:"model"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// AI selects the advisory provider: "rule" or "gemini".
type AI struct {
	Provider string `mapstructure:"provider" validate:"oneof=rule gemini"`
}

// Config holds the full configuration for the trading service.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	API      config.API      `mapstructure:"api"`
	Telegram config.Telegram `mapstructure:"telegram"`
	Trading  Trading         `mapstructure:"trading"`
	Session  Session         `mapstructure:"session"`
	Scanner  Scanner         `mapstructure:"scanner"`
	Universe []orb.Candidate `mapstructure:"universe"`
	Risk     Risk            `mapstructure:"risk"`
	Alpaca   Alpaca          `mapstructure:"alpaca"`
	Gemini   Gemini          `mapstructure:"gemini"`
	AI       AI              `mapstructure:"ai"`
}

// Load loads the trading configuration from the given path and fills defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configured limits after defaults are applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid trading configuration: %w", err)
	}
	if c.AI.Provider == "gemini" && c.Gemini.APIKey == "" {
		return fmt.Errorf("invalid trading configuration: gemini provider requires gemini.api_key")
	}
	return nil
}

// ApplyDefaults fills every zero value with the standard ORB parameters.
func (c *Config) ApplyDefaults() {
	setDuration(&c.Trading.PollInterval, 30*time.Second)
	setDuration(&c.Trading.TickTimeout, 25*time.Second)
	setDuration(&c.Trading.RequestTimeout, 8*time.Second)
	setDuration(&c.Trading.ScanTimeout, 5*time.Minute)
	setDuration(&c.Trading.AuthQuarantine, 15*time.Minute)
	setString(&c.Trading.ScanCron, "0 8 * * 1-5")
	setInt(&c.Trading.MaxActiveTickers, 4)
	setInt(&c.Trading.MaxConcurrentData, 8)

	setString(&c.Session.TimeZone, "America/New_York")
	setString(&c.Session.Open, "09:30")
	setString(&c.Session.RangeWindow, "00:05")
	setString(&c.Session.EntryCutoff, "10:15")
	setString(&c.Session.Checkpoint, "10:15")
	setString(&c.Session.ExtendedEnd, "11:30")
	setString(&c.Session.ReentryStart, "09:50")
	setString(&c.Session.ReentryEnd, "10:05")

	th := orb.DefaultThresholds()
	setFloat(&c.Scanner.MinRVOL, th.MinRVOL)
	setFloat(&c.Scanner.MinChangePct, th.MinChangePct)
	setFloat(&c.Scanner.MinAvgVolume, th.MinAvgVolume)
	setFloat(&c.Scanner.MinPrice, th.MinPrice)
	setFloat(&c.Scanner.MaxFloatMillions, th.MaxFloatMillions)
	setInt(&c.Scanner.TopN, th.TopN)
	setInt(&c.Scanner.AvgVolumePeriod, th.AvgVolumePeriod)
	setInt(&c.Scanner.LookbackSessions, th.LookbackSessions)
	setInt(&c.Scanner.HistoryDays, 45)
	setString(&c.Scanner.IndexSymbol, "SPY")
	setInt(&c.Scanner.IndexSMAPeriod, 200)
	setInt(&c.Scanner.IndexMinBars, 150)
	setInt(&c.Scanner.FallbackReuseDays, 3)
	if len(c.Scanner.Exchanges) == 0 {
		c.Scanner.Exchanges = []string{"NASDAQ", "NYSE"}
	}
	if len(c.Scanner.FallbackSymbols) == 0 {
		c.Scanner.FallbackSymbols = orb.DefaultFallbackSymbols
	}
	if len(c.Universe) == 0 {
		c.Universe = orb.DefaultUniverse()
	}

	limits := orb.DefaultLimits()
	setInt(&c.Risk.MaxTradesPerDay, limits.MaxTradesPerDay)
	setFloat(&c.Risk.DailyLossLimitPct, limits.DailyLossLimitPct)
	setFloat(&c.Risk.TopRankRiskPct, limits.TopRankRiskPct)
	setFloat(&c.Risk.AggressiveRiskPct, limits.AggressiveRiskPct)
	setFloat(&c.Risk.TierRiskPct, limits.TierRiskPct)
	setInt(&c.Risk.MaxTieredRank, limits.MaxTieredRank)
	setFloat(&c.Risk.LowVolatilityMax, limits.LowVolatilityMax)
	setFloat(&c.Risk.ShortsOnlyAbove, 25)
	setString(&c.Risk.VolatilitySymbol, "VIX")
	setString(&c.Risk.VolatilityProxySymbol, "UVXY")
	setFloat(&c.Risk.VolatilityProxyFactor, 0.8)
	setFloat(&c.Risk.VolatilityProxyMin, 12)
	setFloat(&c.Risk.VolatilityProxyMax, 40)
	setFloat(&c.Risk.DefaultVolatility, 20)
	setFloat(&c.Risk.CoolOffGapPct, 8)
	setFloat(&c.Risk.LowVolumeRatio, 0.8)
	setInt(&c.Risk.VWAPLookback, 20)
	det := orb.DefaultDetectorConfig()
	setFloat(&c.Risk.MinVolumeRatio, det.MinVolumeRatio)
	setInt(&c.Risk.VolumeLookback, det.VolumeLookback)
	setFloat(&c.Risk.MinConfidence, det.MinConfidence)
	exit := orb.DefaultExitRule()
	setFloat(&c.Risk.ExtendR, exit.ExtendR)
	setInt(&c.Risk.TrailEMAPeriod, exit.EMAPeriod)
	setInt(&c.Risk.MaxEntriesPerSymbol, 2)

	setString(&c.Alpaca.DataURL, "https://data.alpaca.markets")
	setString(&c.Alpaca.PaperURL, "https://paper-api.alpaca.markets")
	setString(&c.Alpaca.LiveURL, "https://api.alpaca.markets")
	setString(&c.Alpaca.Feed, "iex")
	setInt(&c.Alpaca.MaxRequestPerMinute, 200)

	setString(&c.Gemini.Model, "gemini-2.0-flash")
	setInt(&c.Gemini.MaxRequestPerMinute, 15)
	setDuration(&c.Gemini.Timeout, 4*time.Second)
	setString(&c.AI.Provider, "rule")
}

// SessionConfig converts the clock strings into an orb.SessionConfig.
func (c *Config) SessionConfig() (orb.SessionConfig, error) {
	loc, err := time.LoadLocation(c.Session.TimeZone)
	if err != nil {
		return orb.SessionConfig{}, fmt.Errorf("invalid session time zone: %w", err)
	}
	sc := orb.DefaultSessionConfig(loc)
	fields := []struct {
		value string
		dst   *time.Duration
	}{
		{c.Session.Open, &sc.Open},
		{c.Session.RangeWindow, &sc.RangeWindow},
		{c.Session.EntryCutoff, &sc.EntryCutoff},
		{c.Session.Checkpoint, &sc.Checkpoint},
		{c.Session.ExtendedEnd, &sc.ExtendedEnd},
		{c.Session.ReentryStart, &sc.ReentryStart},
		{c.Session.ReentryEnd, &sc.ReentryEnd},
	}
	for _, f := range fields {
		d, err := orb.ParseClock(f.value)
		if err != nil {
			return orb.SessionConfig{}, err
		}
		*f.dst = d
	}
	for _, h := range c.Session.Holidays {
		day, err := utils.ParseDate(strings.TrimSpace(h), loc)
		if err != nil {
			return orb.SessionConfig{}, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		sc.Holidays[day.Format(utils.DateLayout)] = struct{}{}
	}
	if sc.Checkpoint < sc.Open+sc.RangeWindow || sc.ExtendedEnd < sc.Checkpoint {
		return orb.SessionConfig{}, fmt.Errorf("session schedule out of order")
	}
	return sc, nil
}

func (c *Config) Thresholds() orb.Thresholds {
	return orb.Thresholds{
		MinRVOL:          c.Scanner.MinRVOL,
		MinChangePct:     c.Scanner.MinChangePct,
		MinAvgVolume:     c.Scanner.MinAvgVolume,
		MinPrice:         c.Scanner.MinPrice,
		MaxFloatMillions: c.Scanner.MaxFloatMillions,
		TopN:             c.Scanner.TopN,
		AvgVolumePeriod:  c.Scanner.AvgVolumePeriod,
		LookbackSessions: c.Scanner.LookbackSessions,
	}
}

func (c *Config) Limits() orb.Limits {
	l := orb.DefaultLimits()
	l.MaxTradesPerDay = c.Risk.MaxTradesPerDay
	l.DailyLossLimitPct = c.Risk.DailyLossLimitPct
	l.TopRankRiskPct = c.Risk.TopRankRiskPct
	l.AggressiveRiskPct = c.Risk.AggressiveRiskPct
	l.TierRiskPct = c.Risk.TierRiskPct
	l.MaxTieredRank = c.Risk.MaxTieredRank
	l.LowVolatilityMax = c.Risk.LowVolatilityMax
	return l
}

func (c *Config) DetectorConfig() orb.DetectorConfig {
	d := orb.DefaultDetectorConfig()
	d.MinVolumeRatio = c.Risk.MinVolumeRatio
	d.MinConfidence = c.Risk.MinConfidence
	d.VolumeLookback = c.Risk.VolumeLookback
	return d
}

func (c *Config) ExitRule() orb.ExitRule {
	return orb.ExitRule{ExtendR: c.Risk.ExtendR, EMAPeriod: c.Risk.TrailEMAPeriod}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if *dst == 0 {
		*dst = v
	}
}
