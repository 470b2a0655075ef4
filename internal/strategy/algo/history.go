// Package algo holds the built-in algorithm implementations and the
// name-to-constructor factory. Every algorithm keeps a bounded candle
// history: two weeks of candles at most, trimmed back to one week.
package algo

import (
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

const (
	_historyCeiling = 14 * 24 * time.Hour
	_historyFloor   = 7 * 24 * time.Hour
)

// history is the shared bounded candle buffer. A candle with the same
// open time as the newest one replaces it, so a still-forming candle
// updates in place instead of appending.
type history struct {
	interval enum.Interval
	klines   []model.Kline
}

func newHistory(interval enum.Interval) *history {
	return &history{interval: interval}
}

func (h *history) push(k model.Kline) {
	n := len(h.klines)
	if n > 0 && h.klines[n-1].OpenTime == k.OpenTime {
		h.klines[n-1] = k
		return
	}
	h.klines = append(h.klines, k)
	if len(h.klines) > h.ceiling() {
		h.trim()
	}
}

func (h *history) trim() {
	floor := h.floor()
	if len(h.klines) > floor {
		h.klines = append(h.klines[:0:0], h.klines[len(h.klines)-floor:]...)
	}
}

func (h *history) len() int { return len(h.klines) }

// closes returns the last n close prices, oldest first.
func (h *history) closes(n int) []float64 {
	if n > len(h.klines) {
		n = len(h.klines)
	}
	out := make([]float64, 0, n)
	for _, k := range h.klines[len(h.klines)-n:] {
		out = append(out, k.Close)
	}
	return out
}

func (h *history) ceiling() int {
	return int(_historyCeiling / h.interval.Duration())
}

func (h *history) floor() int {
	return int(_historyFloor / h.interval.Duration())
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// floatParam reads a numeric field from an open parameter document.
func floatParam(params map[string]any, key string) (float64, bool) {
	raw, ok := params[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
