package storage

import (
	"context"
	"sort"
	"sync"

	"main/internal/model"
	"main/internal/model/enum"
)

// Memory keeps everything in process memory. It backs tests, dry runs
// and backtests that have no database configured.
type Memory struct {
	mu        sync.Mutex
	klines    map[string]map[int64]model.Kline
	trades    map[string][]model.TradeTx
	summaries map[string]model.StrategySummary
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		klines:    make(map[string]map[int64]model.Kline),
		trades:    make(map[string][]model.TradeTx),
		summaries: make(map[string]model.StrategySummary),
	}
}

func (m *Memory) SaveKlines(_ context.Context, klines []model.Kline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range klines {
		key := model.KlineKey(k.Symbol, k.Interval)
		bucket, ok := m.klines[key]
		if !ok {
			bucket = make(map[int64]model.Kline)
			m.klines[key] = bucket
		}
		bucket[k.OpenTime] = k
	}
	return nil
}

func (m *Memory) Klines(_ context.Context, symbol string, interval enum.Interval, from, to int64, limit int) ([]model.Kline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.klines[model.KlineKey(symbol, interval)]
	out := make([]model.Kline, 0, len(bucket))
	for openTime, k := range bucket {
		if openTime >= from && openTime < to {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *Memory) SaveTrades(_ context.Context, trades []model.TradeTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range trades {
		m.trades[tx.Position.StrategyID] = append(m.trades[tx.Position.StrategyID], tx)
	}
	return nil
}

func (m *Memory) Trades(_ context.Context, strategyID string) ([]model.TradeTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.TradeTx, len(m.trades[strategyID]))
	copy(out, m.trades[strategyID])
	sort.Slice(out, func(i, j int) bool { return out[i].CloseTime < out[j].CloseTime })
	return out, nil
}

func (m *Memory) SaveStrategySummary(_ context.Context, summary model.StrategySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[summary.StrategyID] = summary
	return nil
}

func (m *Memory) StrategySummary(_ context.Context, strategyID string) (model.StrategySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary, ok := m.summaries[strategyID]
	if !ok {
		return model.StrategySummary{}, ErrSummaryNotFound
	}
	return summary, nil
}

func (m *Memory) ListStrategySummaries(context.Context) ([]model.StrategySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.StrategySummary, 0, len(m.summaries))
	for _, summary := range m.summaries {
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StrategyID < out[j].StrategyID })
	return out, nil
}

func (m *Memory) Close() error { return nil }
