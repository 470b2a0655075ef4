package model

import "github.com/shopspring/decimal"

// StrategySettings is the per-strategy trading policy. Replacing it at
// runtime swaps the whole value, no field merging.
type StrategySettings struct {
	MaxOpenOrders int
	MarginUSD     float64
	Leverage      int
	StopLoss      *decimal.Decimal
}

// DefaultStrategySettings returns the baseline policy.
func DefaultStrategySettings() StrategySettings {
	return StrategySettings{
		MaxOpenOrders: 1,
		MarginUSD:     100,
		Leverage:      1,
	}
}
