// Package ops loads and resolves the bot's JSON configuration.
package ops

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"main/internal/market"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/storage"
)

var (
	ErrMissingExchange = errors.New("config: exchange section required")
	ErrBadStrategy     = errors.New("config: invalid strategy entry")
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Exchange   ExchangeConfig   `json:"exchange"`
	Database   DatabaseConfig   `json:"database"`
	Market     MarketConfig     `json:"market"`
	Strategies []StrategyConfig `json:"strategies"`
	Profiling  ProfilingConfig  `json:"profiling"`
}

// ExchangeConfig describes the trading venue and credentials.
type ExchangeConfig struct {
	Name      string `json:"name"`
	APIKey    string `json:"apiKey"`
	SecretKey string `json:"secretKey"`
	DryRun    bool   `json:"dryRun"`
}

// DatabaseConfig describes the optional PostgreSQL backend. An empty
// host selects the in-memory store.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// MarketConfig tunes the market engine.
type MarketConfig struct {
	QueueSize        int `json:"queueSize"`
	BackupIntervalMs int `json:"backupIntervalMs"`
	TradeRetentionMs int `json:"tradeRetentionMs"`
	TickerStaleMs    int `json:"tickerStaleMs"`
	SuperviseMs      int `json:"superviseMs"`
}

// StrategyConfig describes one strategy to start at boot.
type StrategyConfig struct {
	Symbol        string         `json:"symbol"`
	Algorithm     string         `json:"algorithm"`
	Interval      string         `json:"interval"`
	Params        map[string]any `json:"params"`
	MaxOpenOrders int            `json:"maxOpenOrders"`
	MarginUSD     float64        `json:"marginUsd"`
	Leverage      int            `json:"leverage"`
}

// ProfilingConfig enables the optional pyroscope agent.
type ProfilingConfig struct {
	ServerAddress string `json:"serverAddress"`
}

// StrategySpec is a resolved strategy entry.
type StrategySpec struct {
	Symbol    string
	Algorithm string
	Interval  enum.Interval
	Params    map[string]any
	Settings  model.StrategySettings
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Exchange   ExchangeConfig
	Database   storage.PGOption
	UseMemory  bool
	Market     market.Config
	Strategies []StrategySpec
	Profiling  ProfilingConfig
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve validates the raw config and applies defaults.
func Resolve(cfg FileConfig) (Loaded, error) {
	if cfg.Exchange.Name == "" {
		return Loaded{}, ErrMissingExchange
	}

	specs := make([]StrategySpec, 0, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		if sc.Symbol == "" || sc.Algorithm == "" {
			return Loaded{}, ErrBadStrategy
		}
		interval, err := enum.ParseInterval(sc.Interval)
		if err != nil {
			return Loaded{}, err
		}

		settings := model.DefaultStrategySettings()
		if sc.MaxOpenOrders > 0 {
			settings.MaxOpenOrders = sc.MaxOpenOrders
		}
		if sc.MarginUSD > 0 {
			settings.MarginUSD = sc.MarginUSD
		}
		if sc.Leverage > 0 {
			settings.Leverage = sc.Leverage
		}

		specs = append(specs, StrategySpec{
			Symbol:    sc.Symbol,
			Algorithm: sc.Algorithm,
			Interval:  interval,
			Params:    sc.Params,
			Settings:  settings,
		})
	}

	return Loaded{
		Exchange: cfg.Exchange,
		Database: storage.PGOption{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		},
		UseMemory: cfg.Database.Host == "",
		Market: market.Config{
			QueueSize:         cfg.Market.QueueSize,
			BackupInterval:    time.Duration(cfg.Market.BackupIntervalMs) * time.Millisecond,
			TradeRetention:    time.Duration(cfg.Market.TradeRetentionMs) * time.Millisecond,
			TickerStaleAfter:  time.Duration(cfg.Market.TickerStaleMs) * time.Millisecond,
			SuperviseInterval: time.Duration(cfg.Market.SuperviseMs) * time.Millisecond,
		},
		Strategies: specs,
		Profiling:  cfg.Profiling,
	}, nil
}
