package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/account"
	"main/internal/bus"
	"main/internal/exchange"
	"main/internal/market"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/storage"
)

func newTestManager(t *testing.T, settings model.StrategySettings) (*Manager, *account.Account, *exchange.Mock) {
	t.Helper()
	mock := exchange.NewMock()
	acc := account.NewAccount(mock)
	engine := market.NewEngine(market.Config{}, mock, storage.NewMemory(), bus.NewQueue[model.MarketEvent](16))
	manager := NewManager(acc, engine, bus.NewQueue[model.SignalMessage](16),
		func(id string) (model.StrategySettings, bool) {
			if id == "unknown" {
				return model.StrategySettings{}, false
			}
			return settings, true
		})
	return manager, acc, mock
}

func backtestSignal(strategyID string, side enum.OrderSide, price float64) model.SignalMessage {
	return model.SignalMessage{
		StrategyID: strategyID,
		Side:       side,
		Symbol:     "BTCUSDT",
		Price:      price,
		IsBackTest: true,
	}
}

func TestHandleOpensFirstPosition(t *testing.T) {
	manager, acc, _ := newTestManager(t, model.DefaultStrategySettings())

	require.NoError(t, manager.Handle(t.Context(), backtestSignal("s1", enum.OrderSideBuy, 100)))

	open := acc.Positions("s1")
	require.Len(t, open, 1)
	assert.Equal(t, enum.OrderSideBuy, open[0].Side)
}

func TestFlipFlattensWithoutOpening(t *testing.T) {
	manager, acc, _ := newTestManager(t, model.StrategySettings{MaxOpenOrders: 2, MarginUSD: 100, Leverage: 1})

	require.NoError(t, manager.Handle(t.Context(), backtestSignal("s1", enum.OrderSideBuy, 100)))
	require.NoError(t, manager.Handle(t.Context(), backtestSignal("s1", enum.OrderSideBuy, 105)))
	require.Len(t, acc.Positions("s1"), 2)

	require.NoError(t, manager.Handle(t.Context(), backtestSignal("s1", enum.OrderSideSell, 110)))

	assert.Empty(t, acc.Positions("s1"), "a flip flattens and opens nothing")
	assert.Len(t, acc.Trades("s1"), 2)

	// The next sell signal opens the new direction.
	require.NoError(t, manager.Handle(t.Context(), backtestSignal("s1", enum.OrderSideSell, 112)))
	open := acc.Positions("s1")
	require.Len(t, open, 1)
	assert.Equal(t, enum.OrderSideSell, open[0].Side)
}

func TestFlipDoesNotTouchOtherStrategies(t *testing.T) {
	manager, acc, _ := newTestManager(t, model.DefaultStrategySettings())

	require.NoError(t, manager.Handle(t.Context(), backtestSignal("s1", enum.OrderSideBuy, 100)))
	require.NoError(t, manager.Handle(t.Context(), backtestSignal("s2", enum.OrderSideSell, 100)))

	require.Len(t, acc.Positions("s1"), 1)
	assert.Equal(t, enum.OrderSideBuy, acc.Positions("s1")[0].Side)
	require.Len(t, acc.Positions("s2"), 1)
	assert.Equal(t, enum.OrderSideSell, acc.Positions("s2")[0].Side)
}

func TestPyramidingCapped(t *testing.T) {
	manager, acc, _ := newTestManager(t, model.StrategySettings{MaxOpenOrders: 2, MarginUSD: 100, Leverage: 1})

	for i := 0; i < 4; i++ {
		require.NoError(t, manager.Handle(t.Context(), backtestSignal("s1", enum.OrderSideBuy, 100)))
	}

	assert.Len(t, acc.Positions("s1"), 2, "signals beyond max open orders are ignored")
	assert.Empty(t, acc.Trades("s1"))
}

func TestUnknownStrategyDropped(t *testing.T) {
	manager, acc, _ := newTestManager(t, model.DefaultStrategySettings())

	require.NoError(t, manager.Handle(t.Context(), backtestSignal("unknown", enum.OrderSideBuy, 100)))
	assert.Empty(t, acc.Positions("unknown"))
}

func TestLiveSignalUsesMarketPrice(t *testing.T) {
	manager, acc, mock := newTestManager(t, model.DefaultStrategySettings())
	mock.SetTicker(model.Ticker{Symbol: "BTCUSDT", LastPrice: 123})

	msg := model.SignalMessage{
		StrategyID: "s1",
		Side:       enum.OrderSideBuy,
		Symbol:     "BTCUSDT",
		Price:      999, // embedded price must be ignored for live signals
	}
	require.NoError(t, manager.Handle(t.Context(), msg))

	open := acc.Positions("s1")
	require.Len(t, open, 1)
	assert.Equal(t, "123", open[0].OpenPrice.String())
}

func TestBacktestSignalUsesEmbeddedPrice(t *testing.T) {
	manager, acc, mock := newTestManager(t, model.DefaultStrategySettings())
	mock.SetTicker(model.Ticker{Symbol: "BTCUSDT", LastPrice: 123})

	require.NoError(t, manager.Handle(t.Context(), backtestSignal("s1", enum.OrderSideBuy, 777)))

	open := acc.Positions("s1")
	require.Len(t, open, 1)
	assert.Equal(t, "777", open[0].OpenPrice.String())
}
