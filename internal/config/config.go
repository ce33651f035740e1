// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, listen addresses, and logging level.
type App struct {
	Name        string `yaml:"name"`
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// DataSource describes the mirror set and resilience knobs of the market data client.
type DataSource struct {
	Mirrors        []string `yaml:"mirrors"`
	TimeoutMs      int      `yaml:"timeout_ms"`
	BackoffBaseMs  int      `yaml:"backoff_base_ms"`
	BackoffMaxMs   int      `yaml:"backoff_max_ms"`
	RequestsPerSec float64  `yaml:"requests_per_sec"`
	Burst          int      `yaml:"burst"`
}

// Screen groups the screening thresholds and the report location.
type Screen struct {
	QuoteAsset        string  `yaml:"quote_asset"`
	MinAvgQuoteVolume float64 `yaml:"min_avg_quote_volume"`
	MinPrice          float64 `yaml:"min_price"`
	Bars              int     `yaml:"bars"`
	OutputPath        string  `yaml:"output_path"`
}

// Telegram holds the notification credentials. Environment variables
// TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID take precedence over the file.
type Telegram struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App        App        `yaml:"app"`
	DataSource DataSource `yaml:"data_source"`
	Screen     Screen     `yaml:"screen"`
	Telegram   Telegram   `yaml:"telegram"`
}

// Default returns the stock configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

// Load reads a YAML file from disk, hydrates a Config struct, fills defaults,
// and applies environment overrides.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	config.applyEnv()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "macd-screener"
	}
	if c.App.ListenAddr == "" {
		c.App.ListenAddr = ":10000"
	}
	if c.App.MetricsAddr == "" {
		c.App.MetricsAddr = ":9100"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if len(c.DataSource.Mirrors) == 0 {
		c.DataSource.Mirrors = []string{
			"https://api.binance.com",
			"https://api1.binance.com",
			"https://api2.binance.com",
			"https://api3.binance.com",
			"https://api4.binance.com",
			"https://api-gcp.binance.com",
		}
	}
	if c.DataSource.TimeoutMs <= 0 {
		c.DataSource.TimeoutMs = 20000
	}
	if c.DataSource.BackoffBaseMs <= 0 {
		c.DataSource.BackoffBaseMs = 500
	}
	if c.DataSource.BackoffMaxMs <= 0 {
		c.DataSource.BackoffMaxMs = 3000
	}
	if c.DataSource.RequestsPerSec <= 0 {
		c.DataSource.RequestsPerSec = 10
	}
	if c.DataSource.Burst <= 0 {
		c.DataSource.Burst = 20
	}
	if c.Screen.QuoteAsset == "" {
		c.Screen.QuoteAsset = "USDT"
	}
	if c.Screen.MinAvgQuoteVolume <= 0 {
		c.Screen.MinAvgQuoteVolume = 300000
	}
	if c.Screen.MinPrice <= 0 {
		c.Screen.MinPrice = 0.005
	}
	if c.Screen.Bars <= 0 {
		c.Screen.Bars = 180
	}
	if c.Screen.OutputPath == "" {
		c.Screen.OutputPath = "scan_results.csv"
	}
}

func (c *Config) applyEnv() {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.BotToken = token
	}
	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		c.Telegram.ChatID = chat
	}
}
