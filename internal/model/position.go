package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// Position is an open, exchange-confirmed exposure owned by the account.
// Quantity is fixed at creation as marginUSD * leverage / openPrice.
type Position struct {
	ID         string
	Symbol     string
	Side       enum.OrderSide
	OpenTime   int64
	OpenPrice  decimal.Decimal
	Quantity   decimal.Decimal
	MarginUSD  decimal.Decimal
	Leverage   int
	StrategyID string
	StopLoss   *decimal.Decimal
}

// NewPosition builds a position from a confirmed exchange fill.
func NewPosition(symbol string, openPrice float64, side enum.OrderSide, marginUSD float64, leverage int) Position {
	if leverage < 1 {
		leverage = 1
	}
	open := decimal.NewFromFloat(openPrice)
	margin := decimal.NewFromFloat(marginUSD)
	qty := margin.Mul(decimal.NewFromInt(int64(leverage))).Div(open)

	return Position{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		OpenTime:  time.Now().UnixMilli(),
		OpenPrice: open,
		Quantity:  qty,
		MarginUSD: margin,
		Leverage:  leverage,
	}
}

// TradeTx is the immutable record of one closed position.
type TradeTx struct {
	ID         string
	CloseTime  int64
	ClosePrice decimal.Decimal
	Position   Position
}

// NewTradeTx freezes a closed position into a trade record.
func NewTradeTx(position Position, closePrice float64, closeTime int64) TradeTx {
	return TradeTx{
		ID:         uuid.NewString(),
		CloseTime:  closeTime,
		ClosePrice: decimal.NewFromFloat(closePrice),
		Position:   position,
	}
}

// Profit returns (close - open) * qty for longs, inverted for shorts.
func (tx TradeTx) Profit() decimal.Decimal {
	diff := tx.ClosePrice.Sub(tx.Position.OpenPrice)
	if tx.Position.Side == enum.OrderSideSell {
		diff = diff.Neg()
	}
	return diff.Mul(tx.Position.Quantity)
}
