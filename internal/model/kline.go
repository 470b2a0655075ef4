package model

import (
	"sort"
	"time"

	"main/internal/model/enum"
)

// Kline is a single candlestick for one symbol and interval.
// Times are unix milliseconds.
type Kline struct {
	Symbol    string
	Interval  enum.Interval
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	OpenTime  int64
	CloseTime int64
}

// KlineMeta tracks the header of a kline series.
type KlineMeta struct {
	Symbol     string
	Interval   enum.Interval
	Len        int
	LastUpdate int64
}

// KlineSeries holds the in-memory candles for one symbol and interval,
// keyed by open time so a later update replaces instead of appending.
type KlineSeries struct {
	Meta   KlineMeta
	klines map[int64]Kline
}

// NewKlineSeries creates an empty series for the symbol and interval.
func NewKlineSeries(symbol string, interval enum.Interval) *KlineSeries {
	return &KlineSeries{
		Meta: KlineMeta{
			Symbol:     symbol,
			Interval:   interval,
			LastUpdate: time.Now().UnixMilli(),
		},
		klines: make(map[int64]Kline),
	}
}

// Add inserts a kline, replacing any candle with the same open time.
func (s *KlineSeries) Add(k Kline) {
	s.klines[k.OpenTime] = k
	s.Meta.Len = len(s.klines)
	s.Meta.LastUpdate = time.Now().UnixMilli()
}

// Klines returns all candles sorted ascending by open time.
func (s *KlineSeries) Klines() []Kline {
	out := make([]Kline, 0, len(s.klines))
	for _, k := range s.klines {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out
}

// Len returns the number of candles held in memory.
func (s *KlineSeries) Len() int {
	return len(s.klines)
}

// DrainBefore removes and returns all candles opened before the boundary,
// sorted ascending by open time.
func (s *KlineSeries) DrainBefore(beforeTs int64) []Kline {
	var drained []Kline
	for openTime, k := range s.klines {
		if openTime < beforeTs {
			drained = append(drained, k)
			delete(s.klines, openTime)
		}
	}
	sort.Slice(drained, func(i, j int) bool { return drained[i].OpenTime < drained[j].OpenTime })
	s.Meta.Len = len(s.klines)
	return drained
}

// KlineKey builds the series key, eg. "BTCUSDT@kline_1m".
func KlineKey(symbol string, interval enum.Interval) string {
	return symbol + "@kline_" + interval.String()
}
