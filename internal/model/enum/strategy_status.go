package enum

// StrategyStatus is the lifecycle state of a strategy runtime.
type StrategyStatus uint8

const (
	_strategy_status_beg StrategyStatus = iota
	StrategyStatusCreated
	StrategyStatusRunning
	StrategyStatusStopped
	_strategy_status_end
)

func (s StrategyStatus) IsAvailable() bool {
	return s > _strategy_status_beg && s < _strategy_status_end
}

func (s StrategyStatus) String() string {
	switch s {
	case StrategyStatusCreated:
		return "CREATED"
	case StrategyStatusRunning:
		return "RUNNING"
	case StrategyStatusStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
