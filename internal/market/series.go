// Package market holds the typed bar/series model shared between data ingestion and screening.
package market

import (
	"math"
	"time"
)

// Bar is one weekly OHLCV record. Numeric fields the source could not provide as
// parseable numbers are NaN so downstream statistics can reject instead of crash.
type Bar struct {
	OpenTime    time.Time
	CloseTime   time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	QuoteVolume float64
}

// Series is an ordered sequence of bars for one instrument, oldest first.
// Gaps are not repaired; a short series simply fails the screen's history gate.
type Series []Bar

// Closes returns the close prices in bar order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, bar := range s {
		closes[i] = bar.Close
	}
	return closes
}

// LastClose returns the most recent close, or NaN for an empty series.
func (s Series) LastClose() float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1].Close
}

// AvgQuoteVolume averages the quote-asset volume over the trailing n bars,
// skipping NaN samples. Returns NaN when no valid sample exists in the window.
func (s Series) AvgQuoteVolume(n int) float64 {
	if n <= 0 || len(s) == 0 {
		return math.NaN()
	}
	start := len(s) - n
	if start < 0 {
		start = 0
	}
	var sum float64
	var count int
	for _, bar := range s[start:] {
		if math.IsNaN(bar.QuoteVolume) {
			continue
		}
		sum += bar.QuoteVolume
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}
