package marketdata

import (
	"context"
	"errors"
)

var ErrNoData = errors.New("no market data for symbol")

// Point is one OHLCV bar. Time is the bar's start in unix seconds.
type Point struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Range selects how far back a series goes and the bar size, in the
// provider's own notation ("1y", "1d", "15m").
type Range struct {
	Period   string
	Interval string
}

type Provider interface {
	HistoricalSeries(ctx context.Context, symbol string, rng Range) ([]Point, error)
}
