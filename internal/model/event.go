package model

// MarketEvent is one normalized update pushed by a stream into the
// market engine's queue. Exactly one field is set.
type MarketEvent struct {
	Kline  *Kline
	Ticker *Ticker
	Trade  *AggTrade
}
