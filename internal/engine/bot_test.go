package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/bus"
	"main/internal/exchange"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/storage"
)

func newTestBot() (*Bot, *exchange.Mock, *storage.Memory) {
	mock := exchange.NewMock()
	store := storage.NewMemory()
	bot := New(Config{}, mock, store, bus.NewQueue[model.MarketEvent](16))
	return bot, mock, store
}

func TestAddStrategyRegistersAndSubscribes(t *testing.T) {
	bot, mock, _ := newTestBot()

	s, err := bot.AddStrategy(t.Context(), "BTCUSDT", "moving_average", enum.IntervalMin1, nil, model.DefaultStrategySettings())
	require.NoError(t, err)
	assert.Equal(t, enum.StrategyStatusRunning, s.Status())

	got, ok := bot.Strategy(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	streams := mock.StreamManager().ActiveStreams()
	assert.Len(t, streams, 2, "kline and ticker streams are opened")

	s.Stop()
}

func TestAddStrategyUnknownAlgorithm(t *testing.T) {
	bot, _, _ := newTestBot()
	_, err := bot.AddStrategy(t.Context(), "BTCUSDT", "hodl", enum.IntervalMin1, nil, model.DefaultStrategySettings())
	require.Error(t, err)
	assert.Empty(t, bot.Strategies())
}

func TestStopStrategyFlattensAndPersists(t *testing.T) {
	bot, mock, store := newTestBot()
	mock.SetTicker(model.Ticker{Symbol: "BTCUSDT", LastPrice: 110})

	s, err := bot.AddStrategy(t.Context(), "BTCUSDT", "moving_average", enum.IntervalMin1, nil, model.DefaultStrategySettings())
	require.NoError(t, err)

	_, err = bot.Account().Open(t.Context(), s.ID, "BTCUSDT", enum.OrderSideBuy, 100, s.Settings())
	require.NoError(t, err)

	summary, err := bot.StopStrategy(t.Context(), s.ID, true)
	require.NoError(t, err)

	assert.Equal(t, enum.StrategyStatusStopped, s.Status())
	assert.Empty(t, bot.Account().Positions(s.ID), "stop with close flattens the book")
	assert.Equal(t, 1, summary.LongCount)
	assert.True(t, summary.Profit.IsPositive(), "long 100 closed at 110, got %s", summary.Profit)

	stored, err := store.StrategySummary(t.Context(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, summary, stored)

	trades, err := store.Trades(t.Context(), s.ID)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestStopStrategyWithoutPriceKeepsPositionsOpen(t *testing.T) {
	bot, mock, _ := newTestBot()

	s, err := bot.AddStrategy(t.Context(), "BTCUSDT", "moving_average", enum.IntervalMin1, nil, model.DefaultStrategySettings())
	require.NoError(t, err)

	_, err = bot.Account().Open(t.Context(), s.ID, "BTCUSDT", enum.OrderSideBuy, 50_000, s.Settings())
	require.NoError(t, err)

	// No ticker is available, so the flatten cannot price the close.
	_, err = bot.StopStrategy(t.Context(), s.ID, true)
	require.Error(t, err)
	assert.Equal(t, enum.StrategyStatusRunning, s.Status(), "a failed stop leaves the strategy running")
	assert.Len(t, bot.Account().Positions(s.ID), 1, "positions must never close at a fabricated price")

	// Once a price exists the stop goes through.
	mock.SetTicker(model.Ticker{Symbol: "BTCUSDT", LastPrice: 55_000})
	summary, err := bot.StopStrategy(t.Context(), s.ID, true)
	require.NoError(t, err)
	assert.Equal(t, enum.StrategyStatusStopped, s.Status())
	assert.Empty(t, bot.Account().Positions(s.ID))
	assert.True(t, summary.Profit.IsPositive())
}

func TestStopStrategyUnknown(t *testing.T) {
	bot, _, _ := newTestBot()
	_, err := bot.StopStrategy(t.Context(), "nope", true)
	assert.ErrorIs(t, err, ErrStrategyNotFound)
}

func TestRunBackTestOverStoredRange(t *testing.T) {
	bot, _, store := newTestBot()

	closes := []float64{10, 10, 10, 9, 12}
	klines := make([]model.Kline, 0, len(closes))
	for i, c := range closes {
		klines = append(klines, model.Kline{
			Symbol:    "BTCUSDT",
			Interval:  enum.IntervalMin1,
			Open:      c,
			Close:     c,
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
		})
	}
	require.NoError(t, store.SaveKlines(t.Context(), klines))

	summary, err := bot.RunBackTest(t.Context(), "BTCUSDT", "moving_average", enum.IntervalMin1,
		map[string]any{"period": 3}, model.DefaultStrategySettings(), 0, 10*60_000)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ShortCount)
	assert.Equal(t, 0, summary.LongCount, "the flip at 12 only flattens the short")

	// The run's summary is persisted for later inspection.
	stored, err := store.StrategySummary(t.Context(), summary.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, summary, stored)

	// Live account state is untouched by a backtest.
	for _, s := range bot.Strategies() {
		assert.Empty(t, bot.Account().Positions(s.ID))
	}
}
