package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func minuteKline(openTime int64, close float64) Kline {
	return Kline{
		Symbol:    "BTCUSDT",
		Interval:  enum.IntervalMin1,
		Close:     close,
		OpenTime:  openTime,
		CloseTime: openTime + enum.IntervalMin1.Millis() - 1,
	}
}

func TestKlineSeriesReplacesSameOpenTime(t *testing.T) {
	s := NewKlineSeries("BTCUSDT", enum.IntervalMin1)
	s.Add(minuteKline(0, 100))
	s.Add(minuteKline(0, 101))
	s.Add(minuteKline(60_000, 102))

	require.Equal(t, 2, s.Len())
	klines := s.Klines()
	assert.Equal(t, 101.0, klines[0].Close, "later update should replace the candle")
	assert.Equal(t, 102.0, klines[1].Close)
}

func TestKlineSeriesDrainBefore(t *testing.T) {
	s := NewKlineSeries("BTCUSDT", enum.IntervalMin1)
	for i := int64(0); i < 5; i++ {
		s.Add(minuteKline(i*60_000, float64(i)))
	}

	drained := s.DrainBefore(3 * 60_000)
	require.Len(t, drained, 3)
	for i := 1; i < len(drained); i++ {
		assert.Less(t, drained[i-1].OpenTime, drained[i].OpenTime)
	}
	assert.Equal(t, 2, s.Len())

	// Draining again is a no-op.
	assert.Empty(t, s.DrainBefore(3*60_000))
}

func TestKlineKey(t *testing.T) {
	assert.Equal(t, "BTCUSDT@kline_1m", KlineKey("BTCUSDT", enum.IntervalMin1))
	assert.Equal(t, "ETHUSDT@kline_1h", KlineKey("ETHUSDT", enum.IntervalHour1))
}
