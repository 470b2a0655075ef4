package model

import (
	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// StrategySummary aggregates the outcome of one strategy's closed trades.
// The live stop path and the backtest harness both build their result
// through ComputeSummary so the two cannot diverge.
type StrategySummary struct {
	StrategyID       string
	Symbol           string
	Profit           decimal.Decimal
	MaxDrawdown      decimal.Decimal
	MaxProfit        decimal.Decimal
	LongCount        int
	ShortCount       int
	PeriodStartPrice float64
	PeriodEndPrice   float64
}

// ComputeSummary folds closed trades into a summary. Trades must be in
// close order; the running balance determines max profit and drawdown.
func ComputeSummary(strategyID, symbol string, trades []TradeTx, startPrice, endPrice float64) StrategySummary {
	summary := StrategySummary{
		StrategyID:       strategyID,
		Symbol:           symbol,
		PeriodStartPrice: startPrice,
		PeriodEndPrice:   endPrice,
	}

	balance := decimal.Zero
	drawdownSet := false
	for _, tx := range trades {
		profit := tx.Profit()
		balance = balance.Add(profit)
		summary.Profit = summary.Profit.Add(profit)

		if balance.GreaterThan(summary.MaxProfit) {
			summary.MaxProfit = balance
		}
		if !drawdownSet || balance.LessThan(summary.MaxDrawdown) {
			summary.MaxDrawdown = balance
			drawdownSet = true
		}

		if tx.Position.Side == enum.OrderSideBuy {
			summary.LongCount++
		} else {
			summary.ShortCount++
		}
	}

	return summary
}
