package enum

// StreamType describes the kind of exchange-pushed data stream.
type StreamType uint8

const (
	_stream_type_beg StreamType = iota
	StreamTypeKline
	StreamTypeTicker
	StreamTypeTrade
	_stream_type_end
)

func (t StreamType) IsAvailable() bool {
	return t > _stream_type_beg && t < _stream_type_end
}

func (t StreamType) String() string {
	switch t {
	case StreamTypeKline:
		return "kline"
	case StreamTypeTicker:
		return "ticker"
	case StreamTypeTrade:
		return "trade"
	default:
		return "unknown"
	}
}
