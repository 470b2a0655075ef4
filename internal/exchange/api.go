// Package exchange defines the gateway contracts the engine trades
// through, plus the mock and Binance implementations.
package exchange

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

var (
	ErrOrderRejected = errors.New("exchange rejected order")
	ErrNoData        = errors.New("exchange returned no data")
)

// OpenRequest describes a position the account wants to open.
type OpenRequest struct {
	Symbol    string
	MarginUSD float64
	Leverage  int
	Side      enum.OrderSide
	OpenPrice float64
}

// Info is exchange-level metadata.
type Info struct {
	Name string
}

// Gateway executes position calls and serves market snapshots. Every
// call is fallible; the caller treats a confirmed return value as ground
// truth and a failure as "the action never happened".
type Gateway interface {
	// OpenPosition places the opening order and returns the confirmed
	// position.
	OpenPosition(ctx context.Context, req OpenRequest) (model.Position, error)

	// ClosePosition closes the position at the given price and returns
	// the resulting trade record.
	ClosePosition(ctx context.Context, position model.Position, closePrice float64) (model.TradeTx, error)

	// GetKline fetches the most recent candle for the symbol/interval.
	GetKline(ctx context.Context, symbol string, interval enum.Interval) (model.Kline, error)

	// GetTicker fetches the latest price snapshot for the symbol.
	GetTicker(ctx context.Context, symbol string) (model.Ticker, error)

	// Balance returns the account's quote-currency balance.
	Balance(ctx context.Context) (decimal.Decimal, error)

	// Info describes the venue.
	Info(ctx context.Context) (Info, error)

	// StreamManager returns the venue's subscription manager.
	StreamManager() StreamManager
}
