package exchange

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const klinesFixture = `[
	[1700000000000, "1.0", "1.5", "0.9", "1.2", "1000", 1700604799999, "1200.5", 42, "500", "600", "0"],
	[1700604800000, "1.2", "1.4", "1.1", "not-a-number", "900", 1701209599999, "1100", 40, "450", "540", "0"]
]`

func TestFetchWeeklyParsesBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != klinesPath {
			http.NotFound(w, r)
			return
		}
		query := r.URL.Query()
		if query.Get("symbol") != "BTCUSDT" || query.Get("interval") != weeklyInterval || query.Get("limit") != "180" {
			t.Errorf("unexpected query: %v", query)
		}
		_, _ = w.Write([]byte(klinesFixture))
	}))
	defer server.Close()

	fetcher := NewSeriesFetcher(zerolog.Nop(), testClient(server.URL))
	series, err := fetcher.FetchWeekly(context.Background(), "BTCUSDT", 180)
	if err != nil {
		t.Fatalf("FetchWeekly returned error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(series))
	}

	first := series[0]
	if first.Open != 1.0 || first.High != 1.5 || first.Low != 0.9 || first.Close != 1.2 {
		t.Fatalf("unexpected first bar prices: %+v", first)
	}
	if first.Volume != 1000 || first.QuoteVolume != 1200.5 {
		t.Fatalf("unexpected first bar volumes: %+v", first)
	}
	if !first.OpenTime.Equal(time.UnixMilli(1700000000000).UTC()) {
		t.Fatalf("unexpected open time: %v", first.OpenTime)
	}
	if !first.CloseTime.Equal(time.UnixMilli(1700604799999).UTC()) {
		t.Fatalf("unexpected close time: %v", first.CloseTime)
	}

	// Malformed close coerces to the missing-value sentinel, not an error.
	if !math.IsNaN(series[1].Close) {
		t.Fatalf("expected NaN close for malformed field, got %g", series[1].Close)
	}
	if series[1].QuoteVolume != 1100 {
		t.Fatalf("expected quote volume 1100, got %g", series[1].QuoteVolume)
	}
}

func TestFetchWeeklyEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	fetcher := NewSeriesFetcher(zerolog.Nop(), testClient(server.URL))
	series, err := fetcher.FetchWeekly(context.Background(), "BTCUSDT", 180)
	if err != nil {
		t.Fatalf("expected empty series without error, got %v", err)
	}
	if len(series) != 0 {
		t.Fatalf("expected 0 bars, got %d", len(series))
	}
}

func TestFetchWeeklyPropagatesDataSourceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher := NewSeriesFetcher(zerolog.Nop(), testClient(server.URL))
	_, err := fetcher.FetchWeekly(context.Background(), "BTCUSDT", 180)
	var dsErr *DataSourceError
	if !errors.As(err, &dsErr) {
		t.Fatalf("expected DataSourceError, got %T: %v", err, err)
	}
}

func TestParseBarShortRow(t *testing.T) {
	bar := parseBar([]any{float64(1700000000000), "1.0"})
	if bar.Open != 1.0 {
		t.Fatalf("expected open 1.0, got %g", bar.Open)
	}
	if !math.IsNaN(bar.Close) || !math.IsNaN(bar.QuoteVolume) {
		t.Fatalf("expected NaN for absent columns, got %+v", bar)
	}
}
