package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func TestHistoryReplacesFormingCandle(t *testing.T) {
	h := newHistory(enum.IntervalMin1)
	h.push(model.Kline{OpenTime: 0, Close: 100})
	h.push(model.Kline{OpenTime: 0, Close: 101})
	h.push(model.Kline{OpenTime: 60_000, Close: 102})

	require.Equal(t, 2, h.len())
	assert.Equal(t, []float64{101, 102}, h.closes(2))
}

func TestHistoryTrimsToOneWeek(t *testing.T) {
	h := newHistory(enum.IntervalHour1)
	ceiling := h.ceiling()
	require.Equal(t, 14*24, ceiling)

	for i := 0; i <= ceiling; i++ {
		h.push(model.Kline{OpenTime: int64(i) * 3_600_000, Close: float64(i)})
	}

	assert.Equal(t, h.floor(), h.len(), "exceeding two weeks trims back to one week")
	// The newest candles survive the trim.
	closes := h.closes(1)
	assert.Equal(t, float64(ceiling), closes[0])
}
