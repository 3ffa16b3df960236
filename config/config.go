package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/derj90/ai-trading-manager-clean/internal/logger"
	"github.com/derj90/ai-trading-manager-clean/risk"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Log       logger.Config   `json:"log" yaml:"log"`
	Signal    SignalConfig    `json:"signal" yaml:"signal"`
	Risk      RiskConfig      `json:"risk" yaml:"risk"`
	Portfolio PortfolioConfig `json:"portfolio" yaml:"portfolio"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Feed      FeedConfig      `json:"feed" yaml:"feed"`
}

// ServerConfig covers the webhook intake boundary.
type ServerConfig struct {
	Addr          string   `json:"addr" yaml:"addr"`
	WebhookSecret string   `json:"webhook_secret,omitempty" yaml:"webhook_secret,omitempty"`
	AllowedIPs    []string `json:"allowed_ips,omitempty" yaml:"allowed_ips,omitempty"`
	RatePerMinute float64  `json:"rate_per_minute" yaml:"rate_per_minute"`
	RateBurst     int      `json:"rate_burst" yaml:"rate_burst"`
	MaxBodyBytes  int64    `json:"max_body_bytes" yaml:"max_body_bytes"`
}

type SignalConfig struct {
	TTL           string `json:"ttl" yaml:"ttl"`                       // dedup window, e.g. "60s"
	DrainInterval string `json:"drain_interval" yaml:"drain_interval"` // dispatcher tick, e.g. "1s"
}

func (s SignalConfig) ParseTTL() (time.Duration, error) {
	if s.TTL == "" {
		return 60 * time.Second, nil
	}
	return time.ParseDuration(s.TTL)
}

func (s SignalConfig) ParseDrainInterval() (time.Duration, error) {
	if s.DrainInterval == "" {
		return time.Second, nil
	}
	return time.ParseDuration(s.DrainInterval)
}

type RiskConfig struct {
	MaxOpenPositions    int     `json:"max_open_positions" yaml:"max_open_positions"`
	MaxCorrelated       int     `json:"max_correlated" yaml:"max_correlated"`
	MaxRiskPerTrade     float64 `json:"max_risk_per_trade" yaml:"max_risk_per_trade"`
	MaxPortfolioRisk    float64 `json:"max_portfolio_risk" yaml:"max_portfolio_risk"`
	MaxPositionFraction float64 `json:"max_position_fraction" yaml:"max_position_fraction"`
}

func (r RiskConfig) Policy() risk.Policy {
	return risk.Policy{
		MaxOpenPositions: r.MaxOpenPositions,
		MaxCorrelated:    r.MaxCorrelated,
		MaxRiskPerTrade:  r.MaxRiskPerTrade,
		MaxPortfolioRisk: r.MaxPortfolioRisk,
		MaxPositionFrac:  r.MaxPositionFraction,
	}
}

type PortfolioConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	// Cron spec (with seconds) for the daily rebalance sweep.
	RebalanceCron string `json:"rebalance_cron" yaml:"rebalance_cron"`
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type FeedConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	URL     string   `json:"url,omitempty" yaml:"url,omitempty"`
	Symbols []string `json:"symbols,omitempty" yaml:"symbols,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON based on
// content; YAML is tried first).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the config as YAML (.yaml/.yml) or indented JSON.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration. Failures here abort startup; they
// must never surface per-request.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Server.RatePerMinute < 0 {
		return fmt.Errorf("server.rate_per_minute must not be negative")
	}
	if _, err := c.Signal.ParseTTL(); err != nil {
		return fmt.Errorf("signal.ttl: %w", err)
	}
	if _, err := c.Signal.ParseDrainInterval(); err != nil {
		return fmt.Errorf("signal.drain_interval: %w", err)
	}
	if c.Risk.MaxOpenPositions <= 0 {
		return fmt.Errorf("risk.max_open_positions must be positive")
	}
	if c.Risk.MaxCorrelated <= 0 {
		return fmt.Errorf("risk.max_correlated must be positive")
	}
	if c.Risk.MaxRiskPerTrade <= 0 || c.Risk.MaxRiskPerTrade > 1 {
		return fmt.Errorf("risk.max_risk_per_trade must be between 0 and 1")
	}
	if c.Risk.MaxPortfolioRisk <= 0 || c.Risk.MaxPortfolioRisk > 1 {
		return fmt.Errorf("risk.max_portfolio_risk must be between 0 and 1")
	}
	if c.Risk.MaxPositionFraction <= 0 || c.Risk.MaxPositionFraction > 1 {
		return fmt.Errorf("risk.max_position_fraction must be between 0 and 1")
	}
	if c.Portfolio.InitialCapital <= 0 {
		return fmt.Errorf("portfolio.initial_capital must be positive")
	}
	if c.Journal.Type != "csv" && c.Journal.Type != "sqlite" {
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	if c.Journal.Type == "csv" && (c.Journal.TradesFile == "" || c.Journal.EquityFile == "") {
		return fmt.Errorf("journal trades_file and equity_file required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}
	if c.Feed.Enabled && c.Feed.URL == "" {
		return fmt.Errorf("feed.url required when feed is enabled")
	}
	return nil
}

// Default returns a configuration with sensible defaults. The webhook
// secret is intentionally empty; running without one is a documented
// reduced-security fallback.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			RatePerMinute: 60,
			RateBurst:     10,
			MaxBodyBytes:  1 << 20, // 1 MB
		},
		Log: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Signal: SignalConfig{
			TTL:           "60s",
			DrainInterval: "1s",
		},
		Risk: RiskConfig{
			MaxOpenPositions:    5,
			MaxCorrelated:       2,
			MaxRiskPerTrade:     0.02,
			MaxPortfolioRisk:    0.06,
			MaxPositionFraction: 0.8,
		},
		Portfolio: PortfolioConfig{
			InitialCapital: 10000,
			RebalanceCron:  "0 0 0 * * *", // midnight UTC
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
		},
		Feed: FeedConfig{
			Enabled: false,
		},
	}
}
