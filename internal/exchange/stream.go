package exchange

import (
	"time"

	"main/internal/model/enum"
)

// StreamMeta is the supervision record for one open subscription.
type StreamMeta struct {
	ID          string
	URL         string
	Symbol      string
	StreamType  enum.StreamType
	Interval    enum.Interval
	StartedTime int64
	LastUpdate  int64
}

// NewStreamMeta creates the record for a stream about to open.
func NewStreamMeta(url, symbol string, streamType enum.StreamType, interval enum.Interval) StreamMeta {
	now := time.Now().UnixMilli()
	return StreamMeta{
		ID:          BuildStreamID(symbol, streamType, interval),
		URL:         url,
		Symbol:      symbol,
		StreamType:  streamType,
		Interval:    interval,
		StartedTime: now,
		LastUpdate:  now,
	}
}

// BuildStreamID derives the deterministic stream id, eg. "BTCUSDT@kline_1m".
func BuildStreamID(symbol string, streamType enum.StreamType, interval enum.Interval) string {
	if streamType == enum.StreamTypeKline && interval.IsAvailable() {
		return symbol + "@kline_" + interval.String()
	}
	return symbol + "@" + streamType.String()
}

// StreamManager opens and closes raw data subscriptions. A dead stream is
// detected only by its absence from ActiveStreams; the supervisor reopens
// it on the next tick.
type StreamManager interface {
	// OpenStream starts the subscription described by meta and returns
	// its id.
	OpenStream(meta StreamMeta) (string, error)

	// CloseStream stops the subscription and returns its final metadata.
	CloseStream(streamID string) (StreamMeta, bool)

	// ActiveStreams lists the currently open subscriptions.
	ActiveStreams() []StreamMeta

	// Touch refreshes the last-update time of a stream after an inbound
	// event.
	Touch(streamID string, ts int64)
}
