package algo

import (
	"errors"

	"main/internal/model/enum"
	"main/internal/strategy"
)

var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Build maps an algorithm name to a constructor and applies the given
// parameter document.
func Build(name string, interval enum.Interval, params map[string]any) (strategy.Algorithm, error) {
	var a strategy.Algorithm
	switch name {
	case "moving_average":
		a = NewMovingAverage(interval)
	case "ma_crossover":
		a = NewMACrossover(interval)
	case "rsi":
		a = NewRSI(interval)
	default:
		return nil, ErrUnknownAlgorithm
	}

	if len(params) > 0 {
		if err := a.SetParams(params); err != nil {
			return nil, err
		}
	}
	return a, nil
}
