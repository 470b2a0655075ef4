// Package backtest replays historical candles through the same signal
// pipeline the live bot runs, against a private mock venue, so a run
// never touches live state.
package backtest

import (
	"context"
	"errors"

	"main/internal/account"
	"main/internal/bus"
	"main/internal/exchange"
	"main/internal/market"
	"main/internal/model"
	"main/internal/signal"
	"main/internal/storage"
	"main/internal/strategy"
)

var ErrNoKlines = errors.New("no klines to replay")

// Run evaluates the algorithm over the candles in order, collects its
// signals, then replays them through a private signal manager bound to a
// private dry-run account. Positions still open after replay are closed
// at the last candle's close, so no signal is left implicit.
func Run(ctx context.Context, strategyID, symbol string, algo strategy.Algorithm, settings model.StrategySettings, klines []model.Kline) (model.StrategySummary, error) {
	if len(klines) == 0 {
		return model.StrategySummary{}, ErrNoKlines
	}

	signals := make([]model.SignalMessage, 0)
	for _, k := range klines {
		side, ok := algo.Evaluate(k, nil)
		if !ok {
			continue
		}
		signals = append(signals, model.SignalMessage{
			StrategyID: strategyID,
			Side:       side,
			Symbol:     symbol,
			Price:      k.Close,
			Timestamp:  k.CloseTime,
			IsBackTest: true,
		})
	}

	gateway := exchange.NewMock()
	acc := account.NewAccount(gateway)
	engine := market.NewEngine(market.Config{}, gateway, storage.NewMemory(), bus.NewQueue[model.MarketEvent](1))
	manager := signal.NewManager(acc, engine, bus.NewQueue[model.SignalMessage](1),
		func(string) (model.StrategySettings, bool) { return settings, true })

	for _, msg := range signals {
		if err := manager.Handle(ctx, msg); err != nil {
			return model.StrategySummary{}, err
		}
	}

	lastClose := klines[len(klines)-1].Close
	if _, err := acc.CloseAll(ctx, strategyID, lastClose); err != nil {
		return model.StrategySummary{}, err
	}

	trades := acc.Trades(strategyID)
	return model.ComputeSummary(strategyID, symbol, trades, klines[0].Open, lastClose), nil
}
