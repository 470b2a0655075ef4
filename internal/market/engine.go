// Package market runs the market-data engine: it consumes the stream
// event queue, maintains in-memory candle series, ticker snapshots and
// one-second trade buckets, and periodically drains closed candles to
// storage.
package market

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/exchange"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/storage"
)

var (
	ErrPriceUnavailable = errors.New("no fresh price available")
	ErrKlineUnavailable = errors.New("no kline available")
)

// Config tunes the market engine.
type Config struct {
	// QueueSize is the capacity of the inbound event queue.
	QueueSize int

	// BackupInterval is how often closed candles are drained to storage.
	BackupInterval time.Duration

	// TradeRetention bounds how long trade buckets stay in memory.
	TradeRetention time.Duration

	// TickerStaleAfter is the age beyond which a cached ticker is
	// ignored and the gateway snapshot is used instead.
	TickerStaleAfter time.Duration

	// SuperviseInterval is the stream reconciliation period.
	SuperviseInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 4096
	}
	if c.BackupInterval <= 0 {
		c.BackupInterval = time.Minute
	}
	if c.TradeRetention <= 0 {
		c.TradeRetention = time.Hour
	}
	if c.TickerStaleAfter <= 0 {
		c.TickerStaleAfter = time.Second
	}
	if c.SuperviseInterval <= 0 {
		c.SuperviseInterval = _defaultSuperviseInterval
	}
	return c
}

// Engine owns all live market state. Handle is the single write path;
// the queue consumer calls it, so ordering follows queue order.
type Engine struct {
	cfg        Config
	gateway    exchange.Gateway
	store      storage.Storage
	events     *bus.Queue[model.MarketEvent]
	supervisor *Supervisor

	mu      sync.Mutex
	series  map[string]*model.KlineSeries
	tickers map[string]model.TickerEntry
	trades  map[string]map[model.TradeBucketKey]model.AggTrade

	now func() time.Time
}

// NewEngine creates an engine reading from the given queue. The queue
// must be the same one the gateway's stream manager publishes into.
func NewEngine(cfg Config, gateway exchange.Gateway, store storage.Storage, events *bus.Queue[model.MarketEvent]) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:        cfg,
		gateway:    gateway,
		store:      store,
		events:     events,
		supervisor: NewSupervisor(gateway.StreamManager(), cfg.SuperviseInterval),
		series:     make(map[string]*model.KlineSeries),
		tickers:    make(map[string]model.TickerEntry),
		trades:     make(map[string]map[model.TradeBucketKey]model.AggTrade),
		now:        time.Now,
	}
}

// Run consumes events until the context is done. It also starts the
// stream supervisor and the periodic backup.
func (e *Engine) Run(ctx context.Context) {
	go e.supervisor.Run(ctx)
	go e.runBackup(ctx)
	e.events.Run(ctx, e.Handle)
}

// Subscribe registers a subscription and opens its stream. A failed open
// is retried by the supervisor, so the subscription survives the error.
func (e *Engine) Subscribe(symbol string, streamType enum.StreamType, interval enum.Interval) (string, error) {
	meta := exchange.NewStreamMeta("", symbol, streamType, interval)
	e.supervisor.Need(meta)

	if _, err := e.gateway.StreamManager().OpenStream(meta); err != nil {
		logs.Warnf("open stream %s deferred to supervisor, err: %+v", meta.ID, err)
		return meta.ID, err
	}
	return meta.ID, nil
}

// Unsubscribe closes the stream and stops supervising it.
func (e *Engine) Unsubscribe(streamID string) {
	e.supervisor.Forget(streamID)
}

// Handle applies one stream event to the in-memory state.
func (e *Engine) Handle(ev model.MarketEvent) {
	switch {
	case ev.Kline != nil:
		e.applyKline(*ev.Kline)
	case ev.Ticker != nil:
		e.applyTicker(*ev.Ticker)
	case ev.Trade != nil:
		e.applyTrade(*ev.Trade)
	}
}

func (e *Engine) applyKline(k model.Kline) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := model.KlineKey(k.Symbol, k.Interval)
	s, ok := e.series[key]
	if !ok {
		s = model.NewKlineSeries(k.Symbol, k.Interval)
		e.series[key] = s
	}
	s.Add(k)
}

func (e *Engine) applyTicker(t model.Ticker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickers[t.Symbol] = model.TickerEntry{
		Ticker:    t,
		UpdatedAt: e.now().UnixMilli(),
	}
}

func (e *Engine) applyTrade(t model.AggTrade) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bucket, ok := e.trades[t.Symbol]
	if !ok {
		bucket = make(map[model.TradeBucketKey]model.AggTrade)
		e.trades[t.Symbol] = bucket
	}

	key := model.TradeBucketKey{Second: model.BucketSecond(t.Timestamp), Side: t.Side}
	agg, ok := bucket[key]
	if !ok {
		agg = model.AggTrade{
			Symbol:    t.Symbol,
			Timestamp: key.Second,
			Side:      t.Side,
		}
	}
	agg.Qty += t.Qty
	agg.Price = t.Price
	bucket[key] = agg
}

// LastPrice returns the freshest known price for the symbol. A cached
// ticker older than TickerStaleAfter is bypassed in favor of a gateway
// snapshot.
func (e *Engine) LastPrice(ctx context.Context, symbol string) (float64, error) {
	e.mu.Lock()
	entry, ok := e.tickers[symbol]
	e.mu.Unlock()

	nowMs := e.now().UnixMilli()
	if ok && nowMs-entry.UpdatedAt <= e.cfg.TickerStaleAfter.Milliseconds() {
		return entry.Ticker.LastPrice, nil
	}

	ticker, err := e.gateway.GetTicker(ctx, symbol)
	if err != nil {
		if ok {
			logs.Warnf("ticker snapshot %s failed, serving stale cache, err: %+v", symbol, err)
			return entry.Ticker.LastPrice, nil
		}
		return 0, ErrPriceUnavailable
	}

	e.mu.Lock()
	e.tickers[symbol] = model.TickerEntry{Ticker: ticker, UpdatedAt: nowMs}
	e.mu.Unlock()
	return ticker.LastPrice, nil
}

// LatestKline returns the newest candle, preferring the gateway snapshot
// and falling back to memory when the venue is unreachable.
func (e *Engine) LatestKline(ctx context.Context, symbol string, interval enum.Interval) (model.Kline, error) {
	k, err := e.gateway.GetKline(ctx, symbol, interval)
	if err == nil {
		return k, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.series[model.KlineKey(symbol, interval)]
	if !ok || s.Len() == 0 {
		return model.Kline{}, ErrKlineUnavailable
	}
	klines := s.Klines()
	return klines[len(klines)-1], nil
}

// KlineRange merges stored and in-memory candles with open time in
// [from, to), oldest first. In-memory candles win on the same open time.
// When limit > 0 only the newest limit candles are returned.
func (e *Engine) KlineRange(ctx context.Context, symbol string, interval enum.Interval, from, to int64, limit int) ([]model.Kline, error) {
	stored, err := e.store.Klines(ctx, symbol, interval, from, to, 0)
	if err != nil {
		return nil, err
	}

	merged := make(map[int64]model.Kline, len(stored))
	for _, k := range stored {
		merged[k.OpenTime] = k
	}

	e.mu.Lock()
	if s, ok := e.series[model.KlineKey(symbol, interval)]; ok {
		for _, k := range s.Klines() {
			if k.OpenTime >= from && k.OpenTime < to {
				merged[k.OpenTime] = k
			}
		}
	}
	e.mu.Unlock()

	out := make([]model.Kline, 0, len(merged))
	for _, k := range merged {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Trades returns the aggregated one-second buckets for the symbol since
// the given millisecond timestamp, oldest first.
func (e *Engine) Trades(symbol string, since int64) []model.AggTrade {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.AggTrade, 0)
	for key, agg := range e.trades[symbol] {
		if key.Second >= since {
			out = append(out, agg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].Side < out[j].Side
	})
	return out
}

func (e *Engine) runBackup(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.BackupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Backup(ctx)
		}
	}
}

// Backup drains every closed candle to storage and trims expired trade
// buckets. Candles that fail to save are put back so the next run
// retries them.
func (e *Engine) Backup(ctx context.Context) {
	nowMs := e.now().UnixMilli()

	e.mu.Lock()
	drainedBySeries := make(map[string][]model.Kline)
	for key, s := range e.series {
		boundary := nowMs - nowMs%s.Meta.Interval.Millis()
		if drained := s.DrainBefore(boundary); len(drained) > 0 {
			drainedBySeries[key] = drained
		}
	}
	tradeCutoff := nowMs - e.cfg.TradeRetention.Milliseconds()
	for symbol, bucket := range e.trades {
		for key := range bucket {
			if key.Second < tradeCutoff {
				delete(bucket, key)
			}
		}
		if len(bucket) == 0 {
			delete(e.trades, symbol)
		}
	}
	e.mu.Unlock()

	for key, drained := range drainedBySeries {
		if err := e.store.SaveKlines(ctx, drained); err != nil {
			logs.Errorf("backup %s failed, keeping %d candles in memory, err: %+v", key, len(drained), err)
			e.mu.Lock()
			if s, ok := e.series[key]; ok {
				for _, k := range drained {
					s.Add(k)
				}
			}
			e.mu.Unlock()
			continue
		}
		logs.Infof("backed up %d candles for %s", len(drained), key)
	}
}
