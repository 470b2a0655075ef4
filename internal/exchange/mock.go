package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

// Mock simulates a venue that confirms every call instantly. It backs
// dry-run accounts, the backtest harness and tests. Failure injection
// covers the "gateway rejected" paths.
type Mock struct {
	mu      sync.Mutex
	tickers map[string]model.Ticker
	klines  map[string]model.Kline
	balance decimal.Decimal
	streams *MockStreamManager

	FailOpen  error
	FailClose error
}

// NewMock creates a mock gateway with an empty book.
func NewMock() *Mock {
	return &Mock{
		tickers: make(map[string]model.Ticker),
		klines:  make(map[string]model.Kline),
		balance: decimal.NewFromInt(10_000),
		streams: NewMockStreamManager(),
	}
}

func (m *Mock) OpenPosition(_ context.Context, req OpenRequest) (model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOpen != nil {
		return model.Position{}, m.FailOpen
	}
	return model.NewPosition(req.Symbol, req.OpenPrice, req.Side, req.MarginUSD, req.Leverage), nil
}

func (m *Mock) ClosePosition(_ context.Context, position model.Position, closePrice float64) (model.TradeTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailClose != nil {
		return model.TradeTx{}, m.FailClose
	}
	return model.NewTradeTx(position, closePrice, time.Now().UnixMilli()), nil
}

func (m *Mock) GetKline(_ context.Context, symbol string, interval enum.Interval) (model.Kline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.klines[model.KlineKey(symbol, interval)]
	if !ok {
		return model.Kline{}, ErrNoData
	}
	return k, nil
}

func (m *Mock) GetTicker(_ context.Context, symbol string) (model.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickers[symbol]
	if !ok {
		return model.Ticker{}, ErrNoData
	}
	return t, nil
}

func (m *Mock) Balance(context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, nil
}

func (m *Mock) Info(context.Context) (Info, error) {
	return Info{Name: "mock"}, nil
}

func (m *Mock) StreamManager() StreamManager {
	return m.streams
}

// SetTicker seeds the snapshot returned by GetTicker.
func (m *Mock) SetTicker(t model.Ticker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickers[t.Symbol] = t
}

// SetKline seeds the snapshot returned by GetKline.
func (m *Mock) SetKline(k model.Kline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.klines[model.KlineKey(k.Symbol, k.Interval)] = k
}

// MockStreamManager keeps subscriptions in memory without opening any
// connection. Drop simulates a silently died stream.
type MockStreamManager struct {
	mu      sync.Mutex
	streams map[string]StreamMeta
	opened  int

	FailOpen error
}

// NewMockStreamManager creates an empty manager.
func NewMockStreamManager() *MockStreamManager {
	return &MockStreamManager{streams: make(map[string]StreamMeta)}
}

func (m *MockStreamManager) OpenStream(meta StreamMeta) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOpen != nil {
		return "", m.FailOpen
	}
	m.streams[meta.ID] = meta
	m.opened++
	return meta.ID, nil
}

func (m *MockStreamManager) CloseStream(streamID string) (StreamMeta, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.streams[streamID]
	if ok {
		delete(m.streams, streamID)
	}
	return meta, ok
}

func (m *MockStreamManager) ActiveStreams() []StreamMeta {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StreamMeta, 0, len(m.streams))
	for _, meta := range m.streams {
		out = append(out, meta)
	}
	return out
}

func (m *MockStreamManager) Touch(streamID string, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if meta, ok := m.streams[streamID]; ok {
		meta.LastUpdate = ts
		m.streams[streamID] = meta
	}
}

// Drop removes a stream without going through CloseStream, the way a
// broken connection disappears.
func (m *MockStreamManager) Drop(streamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, streamID)
}

// OpenedCount reports how many OpenStream calls succeeded.
func (m *MockStreamManager) OpenedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}
