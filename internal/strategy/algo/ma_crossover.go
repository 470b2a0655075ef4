package algo

import (
	"main/internal/model"
	"main/internal/model/enum"
)

const (
	_defaultFastPeriod = 7
	_defaultSlowPeriod = 25
)

// MACrossover signals when the fast moving average crosses the slow one:
// fast rising through slow is a Buy, falling through is a Sell.
type MACrossover struct {
	interval enum.Interval
	fast     int
	slow     int
	hist     *history
}

// NewMACrossover creates the algorithm with the default 7/25 windows.
func NewMACrossover(interval enum.Interval) *MACrossover {
	return &MACrossover{
		interval: interval,
		fast:     _defaultFastPeriod,
		slow:     _defaultSlowPeriod,
		hist:     newHistory(interval),
	}
}

func (a *MACrossover) Name() string            { return "ma_crossover" }
func (a *MACrossover) Interval() enum.Interval { return a.interval }
func (a *MACrossover) DataPoints() int         { return a.hist.len() }
func (a *MACrossover) CleanDataPoints()        { a.hist.trim() }

func (a *MACrossover) Params() map[string]any {
	return map[string]any{"fast": a.fast, "slow": a.slow}
}

func (a *MACrossover) SetParams(params map[string]any) error {
	if v, ok := floatParam(params, "fast"); ok && v >= 2 {
		a.fast = int(v)
	}
	if v, ok := floatParam(params, "slow"); ok && int(v) > a.fast {
		a.slow = int(v)
	}
	return nil
}

func (a *MACrossover) Evaluate(kline model.Kline, _ []model.AggTrade) (enum.OrderSide, bool) {
	a.hist.push(kline)
	if a.hist.len() < a.slow+1 {
		return 0, false
	}

	closes := a.hist.closes(a.slow + 1)
	prevFast := mean(closes[len(closes)-1-a.fast : len(closes)-1])
	lastFast := mean(closes[len(closes)-a.fast:])
	prevSlow := mean(closes[:a.slow])
	lastSlow := mean(closes[1:])

	switch {
	case prevFast <= prevSlow && lastFast > lastSlow:
		return enum.OrderSideBuy, true
	case prevFast >= prevSlow && lastFast < lastSlow:
		return enum.OrderSideSell, true
	default:
		return 0, false
	}
}
