package storage

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func TestMemoryKlinesRangeAndLimit(t *testing.T) {
	store := NewMemory()

	klines := make([]model.Kline, 0, 5)
	for i := int64(0); i < 5; i++ {
		klines = append(klines, model.Kline{
			Symbol:   "BTCUSDT",
			Interval: enum.IntervalMin1,
			Close:    float64(i),
			OpenTime: i * 60_000,
		})
	}
	require.NoError(t, store.SaveKlines(t.Context(), klines))

	got, err := store.Klines(t.Context(), "BTCUSDT", enum.IntervalMin1, 60_000, 4*60_000, 0)
	require.NoError(t, err)
	require.Len(t, got, 3, "range is [from, to)")
	assert.Equal(t, int64(60_000), got[0].OpenTime)

	// A positive limit keeps the newest candles of the range.
	got, err = store.Klines(t.Context(), "BTCUSDT", enum.IntervalMin1, 0, 10*60_000, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3*60_000), got[0].OpenTime)
	assert.Equal(t, int64(4*60_000), got[1].OpenTime)

	// Saving the same open time overwrites.
	require.NoError(t, store.SaveKlines(t.Context(), []model.Kline{{
		Symbol:   "BTCUSDT",
		Interval: enum.IntervalMin1,
		Close:    99,
		OpenTime: 0,
	}}))
	got, err = store.Klines(t.Context(), "BTCUSDT", enum.IntervalMin1, 0, 60_000, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 99.0, got[0].Close)
}

func TestMemoryTradesByStrategy(t *testing.T) {
	store := NewMemory()

	p1 := model.NewPosition("BTCUSDT", 100, enum.OrderSideBuy, 100, 1)
	p1.StrategyID = "s1"
	p2 := model.NewPosition("ETHUSDT", 100, enum.OrderSideSell, 100, 1)
	p2.StrategyID = "s2"

	require.NoError(t, store.SaveTrades(t.Context(), []model.TradeTx{
		model.NewTradeTx(p1, 110, 2),
		model.NewTradeTx(p2, 90, 1),
	}))

	got, err := store.Trades(t.Context(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].Position.Symbol)
}

func TestMemorySummaryUpsert(t *testing.T) {
	store := NewMemory()

	_, err := store.StrategySummary(t.Context(), "s1")
	assert.ErrorIs(t, err, ErrSummaryNotFound)

	summary := model.StrategySummary{StrategyID: "s1", Symbol: "BTCUSDT", Profit: decimal.NewFromInt(5)}
	require.NoError(t, store.SaveStrategySummary(t.Context(), summary))

	summary.Profit = decimal.NewFromInt(7)
	require.NoError(t, store.SaveStrategySummary(t.Context(), summary))

	got, err := store.StrategySummary(t.Context(), "s1")
	require.NoError(t, err)
	assert.True(t, got.Profit.Equal(decimal.NewFromInt(7)))

	all, err := store.ListStrategySummaries(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
