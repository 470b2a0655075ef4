package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
)

const (
	_binanceBaseRestUrl = "https://api.binance.com"
	_binanceBaseWsUrl   = "wss://stream.binance.com:9443/ws"
)

// Binance talks to the Binance spot API. Market snapshots are public
// endpoints; position calls are signed with the account's secret key.
type Binance struct {
	apiKey    string
	secretKey string
	baseURL   string
	client    *http.Client
	streams   *BinanceStreamManager
}

// NewBinance creates a gateway publishing stream events into the given
// queue.
func NewBinance(ctx context.Context, apiKey, secretKey string, events *bus.Queue[model.MarketEvent]) *Binance {
	return &Binance{
		apiKey:    apiKey,
		secretKey: secretKey,
		baseURL:   _binanceBaseRestUrl,
		client:    &http.Client{Timeout: 10 * time.Second},
		streams:   NewBinanceStreamManager(ctx, events),
	}
}

func (b *Binance) OpenPosition(ctx context.Context, req OpenRequest) (model.Position, error) {
	quoteQty := req.MarginUSD * float64(req.Leverage)
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side.String())
	params.Set("type", "MARKET")
	params.Set("quoteOrderQty", strconv.FormatFloat(quoteQty, 'f', 8, 64))

	if err := b.signedCall(ctx, http.MethodPost, "/api/v3/order", params, nil); err != nil {
		return model.Position{}, errors.Wrap(ErrOrderRejected, err.Error())
	}

	return model.NewPosition(req.Symbol, req.OpenPrice, req.Side, req.MarginUSD, req.Leverage), nil
}

func (b *Binance) ClosePosition(ctx context.Context, position model.Position, closePrice float64) (model.TradeTx, error) {
	params := url.Values{}
	params.Set("symbol", position.Symbol)
	params.Set("side", position.Side.Opposite().String())
	params.Set("type", "MARKET")
	params.Set("quantity", position.Quantity.StringFixed(8))

	if err := b.signedCall(ctx, http.MethodPost, "/api/v3/order", params, nil); err != nil {
		return model.TradeTx{}, errors.Wrap(ErrOrderRejected, err.Error())
	}

	return model.NewTradeTx(position, closePrice, time.Now().UnixMilli()), nil
}

func (b *Binance) GetKline(ctx context.Context, symbol string, interval enum.Interval) (model.Kline, error) {
	endpoint := fmt.Sprintf("/api/v3/klines?symbol=%s&interval=%s&limit=1", symbol, interval)

	var rows [][]any
	if err := b.get(ctx, endpoint, &rows); err != nil {
		return model.Kline{}, err
	}
	if len(rows) == 0 {
		return model.Kline{}, ErrNoData
	}
	return parseBinanceKlineRow(rows[0], symbol, interval)
}

func (b *Binance) GetTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	endpoint := fmt.Sprintf("/api/v3/ticker/24hr?symbol=%s", symbol)

	var resp struct {
		LastPrice string `json:"lastPrice"`
		CloseTime int64  `json:"closeTime"`
	}
	if err := b.get(ctx, endpoint, &resp); err != nil {
		return model.Ticker{}, err
	}
	last, err := strconv.ParseFloat(resp.LastPrice, 64)
	if err != nil {
		return model.Ticker{}, errors.Wrap(err, "parse lastPrice")
	}
	return model.Ticker{
		Symbol:    symbol,
		LastPrice: last,
		Timestamp: resp.CloseTime,
	}, nil
}

func (b *Binance) Balance(ctx context.Context) (decimal.Decimal, error) {
	var resp struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := b.signedCall(ctx, http.MethodGet, "/api/v3/account", url.Values{}, &resp); err != nil {
		return decimal.Zero, err
	}
	for _, bal := range resp.Balances {
		if bal.Asset == "USDT" {
			return decimal.NewFromString(bal.Free)
		}
	}
	return decimal.Zero, nil
}

func (b *Binance) Info(context.Context) (Info, error) {
	return Info{Name: "binance"}, nil
}

func (b *Binance) StreamManager() StreamManager {
	return b.streams
}

func (b *Binance) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request "+endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("binance status %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode "+endpoint)
	}
	return nil
}

func (b *Binance) signedCall(ctx context.Context, method, endpoint string, params url.Values, out any) error {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()
	query += "&signature=" + b.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+endpoint+"?"+query, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("X-MBX-APIKEY", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request "+endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("binance status %d: %s", resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return errors.Wrap(err, "decode "+endpoint)
		}
	}
	return nil
}

func (b *Binance) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(b.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseBinanceKlineRow(row []any, symbol string, interval enum.Interval) (model.Kline, error) {
	if len(row) < 7 {
		return model.Kline{}, errors.Errorf("kline row too short: %d fields", len(row))
	}
	openTime, err := rowInt(row[0])
	if err != nil {
		return model.Kline{}, errors.Wrap(err, "openTime")
	}
	closeTime, err := rowInt(row[6])
	if err != nil {
		return model.Kline{}, errors.Wrap(err, "closeTime")
	}
	fields := make([]float64, 5)
	for i, name := range []string{"open", "high", "low", "close", "volume"} {
		v, err := rowFloat(row[i+1])
		if err != nil {
			return model.Kline{}, errors.Wrap(err, name)
		}
		fields[i] = v
	}
	return model.Kline{
		Symbol:    symbol,
		Interval:  interval,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
		OpenTime:  openTime,
		CloseTime: closeTime,
	}, nil
}

func rowFloat(v any) (float64, error) {
	switch val := v.(type) {
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	case float64:
		return val, nil
	default:
		return 0, errors.Errorf("unexpected kline field type %T", v)
	}
}

func rowInt(v any) (int64, error) {
	switch val := v.(type) {
	case float64:
		return int64(val), nil
	case string:
		return strconv.ParseInt(val, 10, 64)
	default:
		return 0, errors.Errorf("unexpected kline time type %T", v)
	}
}
