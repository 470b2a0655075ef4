package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/bus"
	"main/internal/exchange"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/storage"
)

func minuteKline(openTime int64, close float64) model.Kline {
	return model.Kline{
		Symbol:    "BTCUSDT",
		Interval:  enum.IntervalMin1,
		Close:     close,
		OpenTime:  openTime,
		CloseTime: openTime + enum.IntervalMin1.Millis() - 1,
	}
}

func newTestEngine(store storage.Storage) (*Engine, *exchange.Mock) {
	mock := exchange.NewMock()
	e := NewEngine(Config{}, mock, store, bus.NewQueue[model.MarketEvent](16))
	return e, mock
}

func TestHandleKlineDedupesByOpenTime(t *testing.T) {
	e, _ := newTestEngine(storage.NewMemory())

	e.Handle(model.MarketEvent{Kline: ptr(minuteKline(0, 100))})
	e.Handle(model.MarketEvent{Kline: ptr(minuteKline(0, 101))})
	e.Handle(model.MarketEvent{Kline: ptr(minuteKline(60_000, 102))})

	klines, err := e.KlineRange(t.Context(), "BTCUSDT", enum.IntervalMin1, 0, 10*60_000, 0)
	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.Equal(t, 101.0, klines[0].Close)
}

func TestBackupDrainsClosedCandles(t *testing.T) {
	store := storage.NewMemory()
	e, _ := newTestEngine(store)
	// Freeze time inside the fifth candle so the first four are closed.
	e.now = func() time.Time { return time.UnixMilli(4*60_000 + 30_000) }

	for i := int64(0); i < 5; i++ {
		e.Handle(model.MarketEvent{Kline: ptr(minuteKline(i*60_000, float64(i)))})
	}

	e.Backup(t.Context())

	stored, err := store.Klines(t.Context(), "BTCUSDT", enum.IntervalMin1, 0, 10*60_000, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 4, "only closed candles are persisted")

	// The merged range still sees everything.
	all, err := e.KlineRange(t.Context(), "BTCUSDT", enum.IntervalMin1, 0, 10*60_000, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

type failingStore struct {
	*storage.Memory
	fail bool
}

func (f *failingStore) SaveKlines(ctx context.Context, klines []model.Kline) error {
	if f.fail {
		return errors.New("disk gone")
	}
	return f.Memory.SaveKlines(ctx, klines)
}

func TestBackupFailureKeepsCandles(t *testing.T) {
	store := &failingStore{Memory: storage.NewMemory(), fail: true}
	e, _ := newTestEngine(store)
	e.now = func() time.Time { return time.UnixMilli(2*60_000 + 30_000) }

	e.Handle(model.MarketEvent{Kline: ptr(minuteKline(0, 100))})
	e.Backup(t.Context())

	// Save failed, so the candle must still be in memory and persist on
	// the next tick.
	store.fail = false
	e.Backup(t.Context())

	stored, err := store.Klines(t.Context(), "BTCUSDT", enum.IntervalMin1, 0, 10*60_000, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestLastPriceStalenessFallback(t *testing.T) {
	e, mock := newTestEngine(storage.NewMemory())
	base := time.UnixMilli(1_000_000)
	e.now = func() time.Time { return base }

	e.Handle(model.MarketEvent{Ticker: &model.Ticker{Symbol: "BTCUSDT", LastPrice: 100, Timestamp: base.UnixMilli()}})

	price, err := e.LastPrice(t.Context(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 100.0, price, "fresh cache is served directly")

	// Two seconds later the cache is stale and the gateway snapshot wins.
	mock.SetTicker(model.Ticker{Symbol: "BTCUSDT", LastPrice: 105})
	e.now = func() time.Time { return base.Add(2 * time.Second) }

	price, err = e.LastPrice(t.Context(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 105.0, price)
}

func TestLastPriceServesStaleCacheWhenGatewayFails(t *testing.T) {
	e, _ := newTestEngine(storage.NewMemory())
	base := time.UnixMilli(1_000_000)
	e.now = func() time.Time { return base }

	e.Handle(model.MarketEvent{Ticker: &model.Ticker{Symbol: "BTCUSDT", LastPrice: 100, Timestamp: base.UnixMilli()}})
	e.now = func() time.Time { return base.Add(time.Minute) }

	// The mock has no ticker seeded, so the snapshot fails.
	price, err := e.LastPrice(t.Context(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)
}

func TestLastPriceUnavailable(t *testing.T) {
	e, _ := newTestEngine(storage.NewMemory())
	_, err := e.LastPrice(t.Context(), "BTCUSDT")
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestLatestKlineFallsBackToMemory(t *testing.T) {
	e, _ := newTestEngine(storage.NewMemory())

	_, err := e.LatestKline(t.Context(), "BTCUSDT", enum.IntervalMin1)
	assert.ErrorIs(t, err, ErrKlineUnavailable)

	e.Handle(model.MarketEvent{Kline: ptr(minuteKline(0, 100))})
	e.Handle(model.MarketEvent{Kline: ptr(minuteKline(60_000, 101))})

	k, err := e.LatestKline(t.Context(), "BTCUSDT", enum.IntervalMin1)
	require.NoError(t, err)
	assert.Equal(t, 101.0, k.Close, "newest in-memory candle wins when the venue is unreachable")
}

func TestTradeBuckets(t *testing.T) {
	e, _ := newTestEngine(storage.NewMemory())

	e.Handle(model.MarketEvent{Trade: &model.AggTrade{Symbol: "BTCUSDT", Timestamp: 1_500, Qty: 1, Price: 100, Side: enum.OrderSideBuy}})
	e.Handle(model.MarketEvent{Trade: &model.AggTrade{Symbol: "BTCUSDT", Timestamp: 1_900, Qty: 2, Price: 101, Side: enum.OrderSideBuy}})
	e.Handle(model.MarketEvent{Trade: &model.AggTrade{Symbol: "BTCUSDT", Timestamp: 1_700, Qty: 5, Price: 99, Side: enum.OrderSideSell}})

	buckets := e.Trades("BTCUSDT", 0)
	require.Len(t, buckets, 2, "same second and side aggregate into one bucket")

	assert.Equal(t, 3.0, buckets[0].Qty)
	assert.Equal(t, 101.0, buckets[0].Price, "bucket keeps the last price")
	assert.Equal(t, 5.0, buckets[1].Qty)
}

func ptr(k model.Kline) *model.Kline { return &k }
