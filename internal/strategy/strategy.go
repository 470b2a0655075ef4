package strategy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/market"
	"main/internal/model"
	"main/internal/model/enum"
)

var ErrNotStartable = errors.New("strategy is not startable")

// Strategy pairs one algorithm with one symbol and a signal queue. The
// lifecycle is Created, Running, Stopped; a stopped strategy never runs
// again.
type Strategy struct {
	ID     string
	Symbol string

	mu       sync.Mutex
	settings model.StrategySettings
	status   enum.StrategyStatus
	cancel   context.CancelFunc

	algo    Algorithm
	market  *market.Engine
	signals *bus.Queue[model.SignalMessage]

	// evalEvery overrides the loop cadence, zero means one algorithm
	// interval per iteration.
	evalEvery time.Duration
	now       func() time.Time
}

// New creates a strategy in the Created state.
func New(symbol string, algo Algorithm, settings model.StrategySettings, engine *market.Engine, signals *bus.Queue[model.SignalMessage]) *Strategy {
	return &Strategy{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		settings: settings,
		status:   enum.StrategyStatusCreated,
		algo:     algo,
		market:   engine,
		signals:  signals,
		now:      time.Now,
	}
}

// Start launches the evaluation loop. Only a Created strategy starts.
func (s *Strategy) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != enum.StrategyStatusCreated {
		return ErrNotStartable
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.status = enum.StrategyStatusRunning

	go s.loop(loopCtx)
	logs.Infof("strategy %s started: %s on %s", s.ID, s.algo.Name(), s.Symbol)
	return nil
}

// Stop cancels the evaluation loop. In-flight evaluations are not
// drained; the caller closes remaining positions as the backstop.
func (s *Strategy) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != enum.StrategyStatusRunning {
		return
	}
	s.cancel()
	s.status = enum.StrategyStatusStopped
	logs.Infof("strategy %s stopped", s.ID)
}

// Status returns the lifecycle state.
func (s *Strategy) Status() enum.StrategyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Settings returns the current policy.
func (s *Strategy) Settings() model.StrategySettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// ReplaceSettings swaps the whole policy value.
func (s *Strategy) ReplaceSettings(settings model.StrategySettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Algorithm exposes the attached decision unit.
func (s *Strategy) Algorithm() Algorithm {
	return s.algo
}

func (s *Strategy) loop(ctx context.Context) {
	cadence := s.evalEvery
	if cadence <= 0 {
		cadence = s.algo.Interval().Duration()
	}
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evaluate(ctx)
		}
	}
}

// Evaluate runs one iteration: fetch the latest snapshot, ask the
// algorithm, emit a signal when it decides a side.
func (s *Strategy) Evaluate(ctx context.Context) {
	kline, err := s.market.LatestKline(ctx, s.Symbol, s.algo.Interval())
	if err != nil {
		logs.Warnf("strategy %s snapshot failed, err: %+v", s.ID, err)
		return
	}
	trades := s.market.Trades(s.Symbol, kline.OpenTime)

	side, ok := s.algo.Evaluate(kline, trades)
	if !ok {
		return
	}

	msg := model.SignalMessage{
		StrategyID: s.ID,
		Side:       side,
		Symbol:     s.Symbol,
		Price:      kline.Close,
		Timestamp:  s.now().UnixMilli(),
	}
	if err := s.signals.Publish(ctx, msg); err != nil {
		logs.Errorf("strategy %s publish signal, err: %+v", s.ID, err)
	}
}
