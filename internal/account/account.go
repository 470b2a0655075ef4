// Package account is the position ledger. Every mutation goes through
// the exchange gateway first; the ledger records only confirmed state,
// so a gateway failure leaves it untouched.
package account

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/exchange"
	"main/internal/model"
	"main/internal/model/enum"
)

var ErrPositionNotFound = errors.New("position not found")

// Account partitions positions and trades by strategy. A position lives
// in exactly one of the two sets: open in positions, or closed as a
// trade transaction.
type Account struct {
	mu        sync.Mutex
	gateway   exchange.Gateway
	dryRun    bool
	positions map[string][]model.Position
	trades    map[string][]model.TradeTx
}

// NewAccount creates an empty ledger trading through the gateway.
func NewAccount(gateway exchange.Gateway) *Account {
	return &Account{
		gateway:   gateway,
		positions: make(map[string][]model.Position),
		trades:    make(map[string][]model.TradeTx),
	}
}

// SetGateway swaps the execution venue. dryRun marks the venue as a
// simulation so operators can tell replayed fills from live ones.
// Existing positions keep their history.
func (a *Account) SetGateway(gateway exchange.Gateway, dryRun bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gateway = gateway
	a.dryRun = dryRun
	logs.Infof("execution gateway swapped, dryRun=%t", dryRun)
}

// DryRun reports whether the current gateway is a simulation.
func (a *Account) DryRun() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dryRun
}

// Open places the opening order and, once confirmed, records the
// position under the strategy.
func (a *Account) Open(ctx context.Context, strategyID, symbol string, side enum.OrderSide, price float64, settings model.StrategySettings) (model.Position, error) {
	a.mu.Lock()
	gateway := a.gateway
	a.mu.Unlock()

	position, err := gateway.OpenPosition(ctx, exchange.OpenRequest{
		Symbol:    symbol,
		MarginUSD: settings.MarginUSD,
		Leverage:  settings.Leverage,
		Side:      side,
		OpenPrice: price,
	})
	if err != nil {
		return model.Position{}, err
	}

	position.StrategyID = strategyID
	position.StopLoss = settings.StopLoss

	a.mu.Lock()
	a.positions[strategyID] = append(a.positions[strategyID], position)
	a.mu.Unlock()

	logs.Infof("opened %s %s qty=%s strategy=%s", side, symbol, position.Quantity, strategyID)
	return position, nil
}

// Close closes one position at the given price and moves it into the
// trade history. A gateway failure leaves the position open. The
// position is claimed under the lock before the gateway call, so a
// concurrent closer of the same id gets ErrPositionNotFound instead of
// a second trade.
func (a *Account) Close(ctx context.Context, strategyID, positionID string, closePrice float64) (model.TradeTx, error) {
	a.mu.Lock()
	gateway := a.gateway
	position, ok := a.findPosition(strategyID, positionID)
	if ok {
		a.removePosition(strategyID, positionID)
	}
	a.mu.Unlock()
	if !ok {
		return model.TradeTx{}, ErrPositionNotFound
	}

	tx, err := gateway.ClosePosition(ctx, position, closePrice)
	if err != nil {
		a.mu.Lock()
		a.positions[strategyID] = append(a.positions[strategyID], position)
		a.mu.Unlock()
		return model.TradeTx{}, err
	}

	a.mu.Lock()
	a.trades[strategyID] = append(a.trades[strategyID], tx)
	a.mu.Unlock()

	logs.Infof("closed %s %s profit=%s strategy=%s", position.Side, position.Symbol, tx.Profit(), strategyID)
	return tx, nil
}

// CloseAll closes every open position of the strategy at the given
// price. It stops at the first gateway failure; positions already
// confirmed closed stay closed.
func (a *Account) CloseAll(ctx context.Context, strategyID string, closePrice float64) ([]model.TradeTx, error) {
	closed := make([]model.TradeTx, 0, len(a.Positions(strategyID)))
	for _, position := range a.Positions(strategyID) {
		tx, err := a.Close(ctx, strategyID, position.ID, closePrice)
		if errors.Is(err, ErrPositionNotFound) {
			// A concurrent closer claimed it first.
			continue
		}
		if err != nil {
			return closed, err
		}
		closed = append(closed, tx)
	}
	return closed, nil
}

// Positions returns copies of the strategy's open positions in open
// order.
func (a *Account) Positions(strategyID string) []model.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Position, len(a.positions[strategyID]))
	copy(out, a.positions[strategyID])
	return out
}

// Trades returns copies of the strategy's closed trades in close order.
func (a *Account) Trades(strategyID string) []model.TradeTx {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.TradeTx, len(a.trades[strategyID]))
	copy(out, a.trades[strategyID])
	return out
}

// AllPositions returns copies of every open position across strategies.
func (a *Account) AllPositions() []model.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Position, 0)
	for _, open := range a.positions {
		out = append(out, open...)
	}
	return out
}

// AllTrades returns copies of every closed trade across strategies.
func (a *Account) AllTrades() []model.TradeTx {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.TradeTx, 0)
	for _, txs := range a.trades {
		out = append(out, txs...)
	}
	return out
}

// Balance passes through to the gateway.
func (a *Account) Balance(ctx context.Context) (decimal.Decimal, error) {
	a.mu.Lock()
	gateway := a.gateway
	a.mu.Unlock()
	return gateway.Balance(ctx)
}

func (a *Account) findPosition(strategyID, positionID string) (model.Position, bool) {
	for _, position := range a.positions[strategyID] {
		if position.ID == positionID {
			return position, true
		}
	}
	return model.Position{}, false
}

func (a *Account) removePosition(strategyID, positionID string) {
	open := a.positions[strategyID]
	for i, position := range open {
		if position.ID == positionID {
			a.positions[strategyID] = append(open[:i], open[i+1:]...)
			return
		}
	}
}
