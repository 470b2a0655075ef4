package model

import "main/internal/model/enum"

// AggTrade is a trade tick aggregated into a one-second bucket.
// Timestamp is the bucket second in unix milliseconds.
type AggTrade struct {
	Symbol    string
	Timestamp int64
	Qty       float64
	Price     float64
	Side      enum.OrderSide
}

// TradeBucketKey identifies one aggregation bucket.
type TradeBucketKey struct {
	Second int64
	Side   enum.OrderSide
}

// BucketSecond floors a millisecond timestamp to its second boundary,
// still expressed in milliseconds.
func BucketSecond(ts int64) int64 {
	return ts - ts%1000
}
