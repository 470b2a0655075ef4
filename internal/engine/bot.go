// Package engine wires the trading bot together: one gateway, one
// market engine, one account, one signal manager, and the registry of
// running strategies.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/backtest"
	"main/internal/bus"
	"main/internal/exchange"
	"main/internal/market"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/signal"
	"main/internal/storage"
	"main/internal/strategy"
	"main/internal/strategy/algo"
)

var ErrStrategyNotFound = errors.New("strategy not found")

// Bot is the live trading process.
type Bot struct {
	gateway exchange.Gateway
	store   storage.Storage
	account *account.Account
	market  *market.Engine
	signals *bus.Queue[model.SignalMessage]
	manager *signal.Manager

	mu         sync.Mutex
	strategies map[string]*strategy.Strategy
}

// Config tunes the bot's queues and market engine.
type Config struct {
	Market          market.Config
	SignalQueueSize int
}

func (c Config) withDefaults() Config {
	if c.SignalQueueSize <= 0 {
		c.SignalQueueSize = 1024
	}
	return c
}

// New wires a bot. The events queue must be the one the gateway's
// stream manager publishes into.
func New(cfg Config, gateway exchange.Gateway, store storage.Storage, events *bus.Queue[model.MarketEvent]) *Bot {
	cfg = cfg.withDefaults()

	b := &Bot{
		gateway:    gateway,
		store:      store,
		account:    account.NewAccount(gateway),
		market:     market.NewEngine(cfg.Market, gateway, store, events),
		signals:    bus.NewQueue[model.SignalMessage](cfg.SignalQueueSize),
		strategies: make(map[string]*strategy.Strategy),
	}
	b.manager = signal.NewManager(b.account, b.market, b.signals, b.settingsLookup)
	return b
}

// Run blocks consuming market events and signals until the context is
// done.
func (b *Bot) Run(ctx context.Context) {
	go b.market.Run(ctx)
	b.manager.Run(ctx)
}

// Account exposes the position ledger.
func (b *Bot) Account() *account.Account { return b.account }

// Market exposes the market engine.
func (b *Bot) Market() *market.Engine { return b.market }

// AddStrategy builds the named algorithm, subscribes its market data
// and starts the evaluation loop.
func (b *Bot) AddStrategy(ctx context.Context, symbol, algoName string, interval enum.Interval, params map[string]any, settings model.StrategySettings) (*strategy.Strategy, error) {
	a, err := algo.Build(algoName, interval, params)
	if err != nil {
		return nil, err
	}

	s := strategy.New(symbol, a, settings, b.market, b.signals)

	if _, err := b.market.Subscribe(symbol, enum.StreamTypeKline, interval); err != nil {
		logs.Warnf("kline stream for %s pending, err: %+v", symbol, err)
	}
	if _, err := b.market.Subscribe(symbol, enum.StreamTypeTicker, 0); err != nil {
		logs.Warnf("ticker stream for %s pending, err: %+v", symbol, err)
	}

	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.strategies[s.ID] = s
	b.mu.Unlock()
	return s, nil
}

// StopStrategy cancels the strategy loop, optionally flattens its
// positions, persists its trades and returns the run summary.
func (b *Bot) StopStrategy(ctx context.Context, strategyID string, closePositions bool) (model.StrategySummary, error) {
	b.mu.Lock()
	s, ok := b.strategies[strategyID]
	b.mu.Unlock()
	if !ok {
		return model.StrategySummary{}, ErrStrategyNotFound
	}

	endPrice, priceErr := b.market.LastPrice(ctx, s.Symbol)
	if priceErr != nil {
		// Without a price the book cannot be flattened; leave the
		// strategy running and its positions open.
		if closePositions && len(b.account.Positions(strategyID)) > 0 {
			return model.StrategySummary{}, priceErr
		}
		logs.Warnf("no end price for %s, err: %+v", s.Symbol, priceErr)
		endPrice = 0
	}

	s.Stop()

	if closePositions && len(b.account.Positions(strategyID)) > 0 {
		if _, err := b.account.CloseAll(ctx, strategyID, endPrice); err != nil {
			return model.StrategySummary{}, err
		}
	}

	trades := b.account.Trades(strategyID)
	startPrice := endPrice
	if len(trades) > 0 {
		startPrice = trades[0].Position.OpenPrice.InexactFloat64()
	}
	summary := model.ComputeSummary(strategyID, s.Symbol, trades, startPrice, endPrice)

	if err := b.store.SaveTrades(ctx, trades); err != nil {
		logs.Errorf("persist trades for %s, err: %+v", strategyID, err)
	}
	if err := b.store.SaveStrategySummary(ctx, summary); err != nil {
		logs.Errorf("persist summary for %s, err: %+v", strategyID, err)
	}

	return summary, nil
}

// Strategy returns a running or stopped strategy by id.
func (b *Bot) Strategy(strategyID string) (*strategy.Strategy, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.strategies[strategyID]
	return s, ok
}

// Strategies lists every registered strategy.
func (b *Bot) Strategies() []*strategy.Strategy {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*strategy.Strategy, 0, len(b.strategies))
	for _, s := range b.strategies {
		out = append(out, s)
	}
	return out
}

// RunBackTest replays the stored candle range through a fresh instance
// of the named algorithm and persists the resulting summary.
func (b *Bot) RunBackTest(ctx context.Context, symbol, algoName string, interval enum.Interval, params map[string]any, settings model.StrategySettings, from, to int64) (model.StrategySummary, error) {
	a, err := algo.Build(algoName, interval, params)
	if err != nil {
		return model.StrategySummary{}, err
	}

	klines, err := b.market.KlineRange(ctx, symbol, interval, from, to, 0)
	if err != nil {
		return model.StrategySummary{}, err
	}

	summary, err := backtest.Run(ctx, "backtest-"+algoName+"-"+symbol, symbol, a, settings, klines)
	if err != nil {
		return model.StrategySummary{}, err
	}

	if err := b.store.SaveStrategySummary(ctx, summary); err != nil {
		logs.Errorf("persist backtest summary, err: %+v", err)
	}
	return summary, nil
}

func (b *Bot) settingsLookup(strategyID string) (model.StrategySettings, bool) {
	b.mu.Lock()
	s, ok := b.strategies[strategyID]
	b.mu.Unlock()
	if !ok {
		return model.StrategySettings{}, false
	}
	return s.Settings(), true
}
