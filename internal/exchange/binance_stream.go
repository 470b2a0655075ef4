package exchange

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
)

// BinanceStreamManager opens one websocket task per subscription and
// pushes normalized events into the market queue.
type BinanceStreamManager struct {
	mu      sync.Mutex
	ctx     context.Context
	events  *bus.Queue[model.MarketEvent]
	streams map[string]*binanceStream
	reqID   atomic.Int64
}

type binanceStream struct {
	meta StreamMeta
	wss  *ws.WebSocket
}

// NewBinanceStreamManager creates a manager bound to the process context.
func NewBinanceStreamManager(ctx context.Context, events *bus.Queue[model.MarketEvent]) *BinanceStreamManager {
	return &BinanceStreamManager{
		ctx:     ctx,
		events:  events,
		streams: make(map[string]*binanceStream),
	}
}

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func (m *BinanceStreamManager) OpenStream(meta StreamMeta) (string, error) {
	m.mu.Lock()
	if _, ok := m.streams[meta.ID]; ok {
		m.mu.Unlock()
		return meta.ID, nil
	}
	m.mu.Unlock()

	wss := ws.New(m.ctx, _binanceBaseWsUrl)
	if err := wss.Start(m.ctx); err != nil {
		return "", errors.Wrap(err, "start wss")
	}

	reqID := m.reqID.Add(1)
	streamName := binanceStreamName(meta)
	if err := wss.SendAndWait(m.ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := binanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{streamName},
				ID:     reqID,
			}
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("stream", streamName)
			}
			return nil
		},
		Waiter: func(ctx context.Context, msg ws.Message) (bool, error) {
			var resp binanceSubscribeResponse
			if err := msg.Unmarshal(&resp); err != nil || resp.ID != reqID {
				return false, nil
			}
			if resp.Result != nil {
				return false, errors.Errorf("subscribe %s, err: %+v", streamName, resp.Result)
			}
			return true, nil
		},
	}, true); err != nil {
		wss.Close()
		return "", errors.Wrap(err, "send and wait")
	}

	m.mu.Lock()
	m.streams[meta.ID] = &binanceStream{meta: meta, wss: wss}
	m.mu.Unlock()

	m.observe(meta, wss)
	logs.Infof("stream opened: %s", meta.ID)
	return meta.ID, nil
}

func (m *BinanceStreamManager) CloseStream(streamID string) (StreamMeta, bool) {
	m.mu.Lock()
	stream, ok := m.streams[streamID]
	if ok {
		delete(m.streams, streamID)
	}
	m.mu.Unlock()

	if !ok {
		return StreamMeta{}, false
	}
	stream.wss.Close()
	logs.Infof("stream closed: %s", streamID)
	return stream.meta, true
}

func (m *BinanceStreamManager) ActiveStreams() []StreamMeta {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StreamMeta, 0, len(m.streams))
	for _, stream := range m.streams {
		out = append(out, stream.meta)
	}
	return out
}

func (m *BinanceStreamManager) Touch(streamID string, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stream, ok := m.streams[streamID]; ok {
		stream.meta.LastUpdate = ts
	}
}

// observe drains the websocket until the stream or process stops. A
// connection that dies simply ends this task; the supervisor notices the
// stream missing and reopens it.
func (m *BinanceStreamManager) observe(meta StreamMeta, wss *ws.WebSocket) {
	ch, cancel := wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-m.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					m.mu.Lock()
					delete(m.streams, meta.ID)
					m.mu.Unlock()
					return
				}
				m.dispatch(meta, msg)
			}
		}
	}()
}

func (m *BinanceStreamManager) dispatch(meta StreamMeta, msg ws.Message) {
	event, ts, ok := decodeBinanceEvent(meta, msg)
	if !ok {
		return
	}
	m.Touch(meta.ID, ts)
	if err := m.events.Publish(m.ctx, event); err != nil {
		logs.Errorf("publish market event, err: %+v", err)
	}
}

type binanceKlineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime  int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
	} `json:"k"`
}

type binanceTickerEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
}

type binanceAggTradeEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Qty       string `json:"q"`
	TradeTime int64  `json:"T"`
	IsMaker   bool   `json:"m"`
}

func decodeBinanceEvent(meta StreamMeta, msg ws.Message) (model.MarketEvent, int64, bool) {
	switch meta.StreamType {
	case enum.StreamTypeKline:
		resp, ok := ws.ReadMessage[binanceKlineEvent](msg)
		if !ok || resp.EventType != "kline" {
			return model.MarketEvent{}, 0, false
		}
		interval, err := enum.ParseInterval(resp.Kline.Interval)
		if err != nil {
			return model.MarketEvent{}, 0, false
		}
		kline := model.Kline{
			Symbol:    resp.Symbol,
			Interval:  interval,
			OpenTime:  resp.Kline.OpenTime,
			CloseTime: resp.Kline.CloseTime,
		}
		for _, field := range []struct {
			raw string
			dst *float64
		}{
			{resp.Kline.Open, &kline.Open},
			{resp.Kline.High, &kline.High},
			{resp.Kline.Low, &kline.Low},
			{resp.Kline.Close, &kline.Close},
			{resp.Kline.Volume, &kline.Volume},
		} {
			v, err := strconv.ParseFloat(field.raw, 64)
			if err != nil {
				logs.Errorf("parse kline field %q, err: %+v", field.raw, err)
				return model.MarketEvent{}, 0, false
			}
			*field.dst = v
		}
		return model.MarketEvent{Kline: &kline}, resp.EventTime, true

	case enum.StreamTypeTicker:
		resp, ok := ws.ReadMessage[binanceTickerEvent](msg)
		if !ok || resp.EventType != "24hrTicker" {
			return model.MarketEvent{}, 0, false
		}
		last, err := strconv.ParseFloat(resp.LastPrice, 64)
		if err != nil {
			return model.MarketEvent{}, 0, false
		}
		return model.MarketEvent{Ticker: &model.Ticker{
			Symbol:    resp.Symbol,
			LastPrice: last,
			Timestamp: resp.EventTime,
		}}, resp.EventTime, true

	case enum.StreamTypeTrade:
		resp, ok := ws.ReadMessage[binanceAggTradeEvent](msg)
		if !ok || resp.EventType != "aggTrade" {
			return model.MarketEvent{}, 0, false
		}
		price, err := strconv.ParseFloat(resp.Price, 64)
		if err != nil {
			return model.MarketEvent{}, 0, false
		}
		qty, err := strconv.ParseFloat(resp.Qty, 64)
		if err != nil {
			return model.MarketEvent{}, 0, false
		}
		side := enum.OrderSideBuy
		if resp.IsMaker {
			side = enum.OrderSideSell
		}
		return model.MarketEvent{Trade: &model.AggTrade{
			Symbol:    resp.Symbol,
			Timestamp: resp.TradeTime,
			Qty:       qty,
			Price:     price,
			Side:      side,
		}}, resp.EventTime, true

	default:
		return model.MarketEvent{}, 0, false
	}
}

func binanceStreamName(meta StreamMeta) string {
	symbol := strings.ToLower(meta.Symbol)
	switch meta.StreamType {
	case enum.StreamTypeKline:
		return symbol + "@kline_" + meta.Interval.String()
	case enum.StreamTypeTrade:
		return symbol + "@aggTrade"
	default:
		return symbol + "@ticker"
	}
}
