package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Binance   BinanceConfig   `yaml:"binance"`
	Screener  ScreenerConfig  `yaml:"screener"`
	AutoTrade AutoTradeConfig `yaml:"auto_trade"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	// URL is usually supplied via the DATABASE_URL env var instead.
	URL string `yaml:"url"`
}

type BinanceConfig struct {
	BaseURL string `yaml:"base_url"`
}

type ScreenerConfig struct {
	Interval    string   `yaml:"interval"`
	Timeframes  []string `yaml:"timeframes"`
	MinVolume   float64  `yaml:"min_volume_usd"`
	Concurrency int      `yaml:"concurrency"`
	KlineLimit  int      `yaml:"kline_limit"`
}

type AutoTradeConfig struct {
	Interval string `yaml:"interval"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Screener.Interval == "" {
		cfg.Screener.Interval = "1m"
	}
	if len(cfg.Screener.Timeframes) == 0 {
		cfg.Screener.Timeframes = []string{"5m", "15m", "1h"}
	}
	if cfg.Screener.MinVolume == 0 {
		cfg.Screener.MinVolume = 1000000
	}
	if cfg.Screener.Concurrency == 0 {
		cfg.Screener.Concurrency = 10
	}
	if cfg.Screener.KlineLimit == 0 {
		cfg.Screener.KlineLimit = 500
	}
	if cfg.AutoTrade.Interval == "" {
		cfg.AutoTrade.Interval = "1m"
	}
}

func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Screener.Interval); err != nil {
		return fmt.Errorf("invalid screener.interval %q: %w", c.Screener.Interval, err)
	}
	if _, err := time.ParseDuration(c.AutoTrade.Interval); err != nil {
		return fmt.Errorf("invalid auto_trade.interval %q: %w", c.AutoTrade.Interval, err)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func (c *Config) ScreenerInterval() time.Duration {
	d, _ := time.ParseDuration(c.Screener.Interval)
	return d
}

func (c *Config) AutoTradeInterval() time.Duration {
	d, _ := time.ParseDuration(c.AutoTrade.Interval)
	return d
}
