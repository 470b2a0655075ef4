// Package storage persists market history and strategy results. The
// market engine drains closed candles into it periodically; the backtest
// harness and the kline range queries read it back.
package storage

import (
	"context"
	"errors"

	"main/internal/model"
	"main/internal/model/enum"
)

var (
	ErrSummaryNotFound = errors.New("strategy summary not found")
)

// Storage is the persistence port shared by the live bot and the
// backtest tooling.
type Storage interface {
	// SaveKlines appends closed candles. Saving the same open time twice
	// overwrites the earlier row.
	SaveKlines(ctx context.Context, klines []model.Kline) error

	// Klines returns candles for the symbol/interval with open time in
	// [from, to), oldest first. When limit > 0 only the newest limit
	// rows of the range are returned.
	Klines(ctx context.Context, symbol string, interval enum.Interval, from, to int64, limit int) ([]model.Kline, error)

	// SaveTrades appends completed trade transactions.
	SaveTrades(ctx context.Context, trades []model.TradeTx) error

	// Trades returns trades for the strategy ordered by close time.
	Trades(ctx context.Context, strategyID string) ([]model.TradeTx, error)

	// SaveStrategySummary upserts the final result of a strategy run.
	SaveStrategySummary(ctx context.Context, summary model.StrategySummary) error

	// StrategySummary loads one summary, ErrSummaryNotFound when absent.
	StrategySummary(ctx context.Context, strategyID string) (model.StrategySummary, error)

	// ListStrategySummaries returns every stored summary.
	ListStrategySummaries(ctx context.Context) ([]model.StrategySummary, error)

	// Close releases the underlying handles.
	Close() error
}
