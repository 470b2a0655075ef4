package algo

import (
	"main/internal/model"
	"main/internal/model/enum"
)

const (
	_defaultRSIPeriod = 14
	_defaultOuterBand = 70.0
	_defaultInnerBand = 30.0
)

// RSI signals on band exits: relative strength dropping under the
// oversold band is a Buy, rising over the overbought band is a Sell.
// Repeated candles inside the same band emit nothing.
type RSI struct {
	interval   enum.Interval
	period     int
	overbought float64
	oversold   float64
	hist       *history
}

// NewRSI creates the algorithm with the default 14/70/30 bands.
func NewRSI(interval enum.Interval) *RSI {
	return &RSI{
		interval:   interval,
		period:     _defaultRSIPeriod,
		overbought: _defaultOuterBand,
		oversold:   _defaultInnerBand,
		hist:       newHistory(interval),
	}
}

func (a *RSI) Name() string            { return "rsi" }
func (a *RSI) Interval() enum.Interval { return a.interval }
func (a *RSI) DataPoints() int         { return a.hist.len() }
func (a *RSI) CleanDataPoints()        { a.hist.trim() }

func (a *RSI) Params() map[string]any {
	return map[string]any{
		"period":     a.period,
		"overbought": a.overbought,
		"oversold":   a.oversold,
	}
}

func (a *RSI) SetParams(params map[string]any) error {
	if v, ok := floatParam(params, "period"); ok && v >= 2 {
		a.period = int(v)
	}
	if v, ok := floatParam(params, "overbought"); ok && v > 50 {
		a.overbought = v
	}
	if v, ok := floatParam(params, "oversold"); ok && v < 50 {
		a.oversold = v
	}
	return nil
}

func (a *RSI) Evaluate(kline model.Kline, _ []model.AggTrade) (enum.OrderSide, bool) {
	a.hist.push(kline)
	if a.hist.len() < a.period+2 {
		return 0, false
	}

	closes := a.hist.closes(a.period + 2)
	prev := rsiValue(closes[:len(closes)-1])
	last := rsiValue(closes[1:])

	switch {
	case prev >= a.oversold && last < a.oversold:
		return enum.OrderSideBuy, true
	case prev <= a.overbought && last > a.overbought:
		return enum.OrderSideSell, true
	default:
		return 0, false
	}
}

// rsiValue computes the simple (non-smoothed) relative strength index
// over the whole window.
func rsiValue(closes []float64) float64 {
	gains, losses := 0.0, 0.0
	for i := 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}
