package exchange

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhchau1982/macd-screener-bot/internal/market"
)

const (
	klinesPath     = "/api/v3/klines"
	weeklyInterval = "1w"
)

// SeriesFetcher retrieves weekly candlestick series through the mirror client.
type SeriesFetcher struct {
	log    zerolog.Logger
	client *Client
}

// NewSeriesFetcher wraps the mirror client for kline retrieval.
func NewSeriesFetcher(log zerolog.Logger, client *Client) *SeriesFetcher {
	return &SeriesFetcher{log: log, client: client}
}

// FetchWeekly returns up to limit of the most recent weekly bars for symbol.
// A zero-bar response is an empty series, not an error. Unparseable numeric
// fields become NaN so the screen rejects the series instead of crashing.
func (f *SeriesFetcher) FetchWeekly(ctx context.Context, symbol string, limit int) (market.Series, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", weeklyInterval)
	query.Set("limit", strconv.Itoa(limit))

	var rows [][]any
	if err := f.client.Get(ctx, klinesPath, query, &rows); err != nil {
		return nil, err
	}
	series := make(market.Series, 0, len(rows))
	for _, row := range rows {
		series = append(series, parseBar(row))
	}
	return series, nil
}

// parseBar reads the source's fixed kline column order: open time, open, high,
// low, close, volume, close time, quote volume, trade count, taker buy base,
// taker buy quote, ignored.
func parseBar(row []any) market.Bar {
	return market.Bar{
		OpenTime:    asTime(field(row, 0)),
		Open:        asFloat(field(row, 1)),
		High:        asFloat(field(row, 2)),
		Low:         asFloat(field(row, 3)),
		Close:       asFloat(field(row, 4)),
		Volume:      asFloat(field(row, 5)),
		CloseTime:   asTime(field(row, 6)),
		QuoteVolume: asFloat(field(row, 7)),
	}
}

func field(row []any, i int) any {
	if i < len(row) {
		return row[i]
	}
	return nil
}

func asFloat(v any) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return math.NaN()
		}
		return parsed
	default:
		return math.NaN()
	}
}

func asTime(v any) time.Time {
	if ms, ok := v.(float64); ok {
		return time.UnixMilli(int64(ms)).UTC()
	}
	return time.Time{}
}
