package algo

import (
	"main/internal/model"
	"main/internal/model/enum"
)

const _defaultMAPeriod = 20

// MovingAverage signals when the close crosses its own moving average:
// a cross above is a Buy, a cross below is a Sell.
type MovingAverage struct {
	interval enum.Interval
	period   int
	hist     *history
}

// NewMovingAverage creates the algorithm with the default period.
func NewMovingAverage(interval enum.Interval) *MovingAverage {
	return &MovingAverage{
		interval: interval,
		period:   _defaultMAPeriod,
		hist:     newHistory(interval),
	}
}

func (a *MovingAverage) Name() string            { return "moving_average" }
func (a *MovingAverage) Interval() enum.Interval { return a.interval }
func (a *MovingAverage) DataPoints() int         { return a.hist.len() }
func (a *MovingAverage) CleanDataPoints()        { a.hist.trim() }

func (a *MovingAverage) Params() map[string]any {
	return map[string]any{"period": a.period}
}

func (a *MovingAverage) SetParams(params map[string]any) error {
	if v, ok := floatParam(params, "period"); ok && v >= 2 {
		a.period = int(v)
	}
	return nil
}

func (a *MovingAverage) Evaluate(kline model.Kline, _ []model.AggTrade) (enum.OrderSide, bool) {
	a.hist.push(kline)
	if a.hist.len() < a.period+1 {
		return 0, false
	}

	closes := a.hist.closes(a.period + 1)
	prevClose := closes[len(closes)-2]
	lastClose := closes[len(closes)-1]
	prevMA := mean(closes[:a.period])
	lastMA := mean(closes[1:])

	switch {
	case prevClose <= prevMA && lastClose > lastMA:
		return enum.OrderSideBuy, true
	case prevClose >= prevMA && lastClose < lastMA:
		return enum.OrderSideSell, true
	default:
		return 0, false
	}
}
