package model

// Ticker is the latest traded price snapshot for a symbol.
type Ticker struct {
	Symbol    string
	LastPrice float64
	Timestamp int64
}

// TickerEntry pairs a ticker with the local time it was observed,
// used for the staleness check in the market engine.
type TickerEntry struct {
	Ticker    Ticker
	UpdatedAt int64
}
