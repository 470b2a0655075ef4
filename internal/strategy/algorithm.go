// Package strategy runs trading strategies: each one owns an algorithm
// and a goroutine that turns market snapshots into signal messages.
package strategy

import (
	"main/internal/model"
	"main/internal/model/enum"
)

// Algorithm is a pluggable decision unit. Implementations keep their own
// bounded candle history and must be deterministic: feeding the same
// candle sequence twice yields the same decisions, which is what makes
// backtest replay reproducible.
type Algorithm interface {
	// Name identifies the algorithm in logs and summaries.
	Name() string

	// Interval is the candle window the algorithm expects.
	Interval() enum.Interval

	// Evaluate consumes the next candle, with optional recent trade
	// buckets, and returns the side to take or false for no signal.
	Evaluate(kline model.Kline, trades []model.AggTrade) (enum.OrderSide, bool)

	// DataPoints reports how many candles the algorithm retains.
	DataPoints() int

	// CleanDataPoints trims retained history to its floor size.
	CleanDataPoints()

	// Params returns the current parameter document.
	Params() map[string]any

	// SetParams replaces parameters from an open key/value document.
	SetParams(params map[string]any) error
}
