// Package signal hosts the single consumer of the signal queue. It is
// the only component that turns strategy decisions into account
// mutations, so per-strategy ordering follows queue order.
package signal

import (
	"context"

	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/bus"
	"main/internal/market"
	"main/internal/model"
)

// SettingsLookup resolves the policy for a strategy id. A miss means
// the signal is dropped, not an error.
type SettingsLookup func(strategyID string) (model.StrategySettings, bool)

// Manager consumes signal messages and applies them to the account.
type Manager struct {
	account *account.Account
	market  *market.Engine
	signals *bus.Queue[model.SignalMessage]
	lookup  SettingsLookup
}

// NewManager creates a manager over the given signal queue.
func NewManager(acc *account.Account, engine *market.Engine, signals *bus.Queue[model.SignalMessage], lookup SettingsLookup) *Manager {
	return &Manager{
		account: acc,
		market:  engine,
		signals: signals,
		lookup:  lookup,
	}
}

// Run consumes the queue until the context is done.
func (m *Manager) Run(ctx context.Context) {
	m.signals.Run(ctx, func(msg model.SignalMessage) {
		if err := m.Handle(ctx, msg); err != nil {
			logs.Errorf("handle signal %s %s, err: %+v", msg.StrategyID, msg.Side, err)
		}
	})
}

// Handle applies one signal. Backtest signals trade at their embedded
// historical price; live signals trade at the current market price.
func (m *Manager) Handle(ctx context.Context, msg model.SignalMessage) error {
	settings, ok := m.lookup(msg.StrategyID)
	if !ok {
		logs.Warnf("signal for unknown strategy %s dropped", msg.StrategyID)
		return nil
	}

	price := msg.Price
	if !msg.IsBackTest {
		live, err := m.market.LastPrice(ctx, msg.Symbol)
		if err != nil {
			return err
		}
		price = live
	}

	open := m.account.Positions(msg.StrategyID)

	// All of a strategy's open positions share one side, so the first
	// one decides whether this is a flip. A flip only flattens; the
	// next same-side signal opens the new direction.
	if len(open) > 0 && open[0].Side != msg.Side {
		_, err := m.account.CloseAll(ctx, msg.StrategyID, price)
		return err
	}

	maxOpen := settings.MaxOpenOrders
	if maxOpen < 1 {
		maxOpen = 1
	}
	if len(open) >= maxOpen {
		return nil
	}

	_, err := m.account.Open(ctx, msg.StrategyID, msg.Symbol, msg.Side, price, settings)
	return err
}
