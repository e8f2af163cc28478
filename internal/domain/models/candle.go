package models

import "time"

// Candle represents one daily OHLCV bar of an asset.
type Candle struct {
	Time   time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}
