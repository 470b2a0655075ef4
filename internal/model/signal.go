package model

import "main/internal/model/enum"

// SignalMessage is a strategy's Buy/Sell decision at one evaluation step.
// Backtest signals carry their historical price so replay never queries
// the live market.
type SignalMessage struct {
	StrategyID string
	Side       enum.OrderSide
	Symbol     string
	Price      float64
	Timestamp  int64
	IsBackTest bool
}
