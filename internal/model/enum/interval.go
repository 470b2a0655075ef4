package enum

import (
	"errors"
	"time"
)

var ErrUnknownInterval = errors.New("unknown interval")

// Interval is a kline aggregation window.
type Interval uint8

const (
	_interval_beg Interval = iota
	IntervalMin1
	IntervalMin5
	IntervalMin15
	IntervalHour1
	_interval_end
)

func (i Interval) IsAvailable() bool {
	return i > _interval_beg && i < _interval_end
}

// ParseInterval converts an exchange interval string.
func ParseInterval(s string) (Interval, error) {
	switch s {
	case "1m":
		return IntervalMin1, nil
	case "5m":
		return IntervalMin5, nil
	case "15m":
		return IntervalMin15, nil
	case "1h":
		return IntervalHour1, nil
	default:
		return 0, ErrUnknownInterval
	}
}

func (i Interval) String() string {
	switch i {
	case IntervalMin1:
		return "1m"
	case IntervalMin5:
		return "5m"
	case IntervalMin15:
		return "15m"
	case IntervalHour1:
		return "1h"
	default:
		return "unknown"
	}
}

// Duration returns the wall-clock length of one window.
func (i Interval) Duration() time.Duration {
	switch i {
	case IntervalMin1:
		return time.Minute
	case IntervalMin5:
		return 5 * time.Minute
	case IntervalMin15:
		return 15 * time.Minute
	case IntervalHour1:
		return time.Hour
	default:
		return time.Minute
	}
}

// Millis returns the window length in milliseconds.
func (i Interval) Millis() int64 {
	return i.Duration().Milliseconds()
}
