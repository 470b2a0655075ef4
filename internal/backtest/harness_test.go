package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/strategy/algo"
)

func testKlines(closes []float64) []model.Kline {
	out := make([]model.Kline, 0, len(closes))
	for i, c := range closes {
		out = append(out, model.Kline{
			Symbol:    "BTCUSDT",
			Interval:  enum.IntervalMin1,
			Open:      c,
			Close:     c,
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
		})
	}
	return out
}

func newMA(t *testing.T) *algo.MovingAverage {
	t.Helper()
	a := algo.NewMovingAverage(enum.IntervalMin1)
	require.NoError(t, a.SetParams(map[string]any{"period": 3}))
	return a
}

func TestRunFlipClosesWithoutOpening(t *testing.T) {
	// The window emits a Sell at 9 and a flip Buy at 12; the flip only
	// flattens the short, so nothing is open at the end.
	klines := testKlines([]float64{10, 10, 10, 9, 12})

	summary, err := Run(t.Context(), "bt", "BTCUSDT", newMA(t), model.DefaultStrategySettings(), klines)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ShortCount)
	assert.Equal(t, 0, summary.LongCount)
	assert.Equal(t, 10.0, summary.PeriodStartPrice)
	assert.Equal(t, 12.0, summary.PeriodEndPrice)

	// The short opened at 9 and was flattened at 12.
	assert.True(t, summary.Profit.IsNegative(), "profit %s", summary.Profit)
}

func TestRunClosesLeftoversAtLastClose(t *testing.T) {
	// The window emits one Sell at 9 and never flips back; the leftover
	// short is closed at the final close of 8.
	klines := testKlines([]float64{10, 10, 10, 9, 8})

	summary, err := Run(t.Context(), "bt", "BTCUSDT", newMA(t), model.DefaultStrategySettings(), klines)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ShortCount)
	assert.Equal(t, 0, summary.LongCount)
	assert.Equal(t, 8.0, summary.PeriodEndPrice)
	assert.True(t, summary.Profit.IsPositive(), "profit %s", summary.Profit)
}

func TestRunDeterministic(t *testing.T) {
	klines := testKlines([]float64{10, 10, 10, 9, 12, 13, 11, 8, 9, 14, 15, 7})

	first, err := Run(t.Context(), "bt", "BTCUSDT", newMA(t), model.DefaultStrategySettings(), klines)
	require.NoError(t, err)
	second, err := Run(t.Context(), "bt", "BTCUSDT", newMA(t), model.DefaultStrategySettings(), klines)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunEmptyRange(t *testing.T) {
	_, err := Run(t.Context(), "bt", "BTCUSDT", newMA(t), model.DefaultStrategySettings(), nil)
	assert.ErrorIs(t, err, ErrNoKlines)
}

func TestRunNoSignalsYieldsEmptySummary(t *testing.T) {
	klines := testKlines([]float64{10, 10, 10, 10, 10, 10})

	summary, err := Run(t.Context(), "bt", "BTCUSDT", newMA(t), model.DefaultStrategySettings(), klines)
	require.NoError(t, err)

	assert.True(t, summary.Profit.IsZero())
	assert.Zero(t, summary.LongCount)
	assert.Zero(t, summary.ShortCount)
}
