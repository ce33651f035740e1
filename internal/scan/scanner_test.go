package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhchau1982/macd-screener-bot/internal/exchange"
	"github.com/minhchau1982/macd-screener-bot/internal/market"
	"github.com/minhchau1982/macd-screener-bot/internal/screen"
)

type fakeUniverse struct {
	symbols []string
	err     error
}

func (f *fakeUniverse) List(context.Context) ([]string, error) { return f.symbols, f.err }

type fakeSeries struct {
	data map[string]market.Series
	errs map[string]error
}

func (f *fakeSeries) FetchWeekly(_ context.Context, symbol string, _ int) (market.Series, error) {
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.data[symbol], nil
}

type fakeNotifier struct {
	texts    []string
	docs     []string
	captions []string
}

func (f *fakeNotifier) SendDocument(_ context.Context, path, caption string) error {
	f.docs = append(f.docs, path)
	f.captions = append(f.captions, caption)
	return nil
}

func (f *fakeNotifier) SendText(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

// qualifyingSeries crosses MACD above its signal line on the final bar while
// MACD is still negative, with enough volume and price to clear the gates.
func qualifyingSeries() market.Series {
	closes := make([]float64, 0, 38)
	for i := 0; i < 34; i++ {
		closes = append(closes, 10)
	}
	closes = append(closes, 5, 9, 10, 11)
	series := make(market.Series, len(closes))
	for i, c := range closes {
		series[i] = market.Bar{Close: c, QuoteVolume: 3e6}
	}
	return series
}

func testParams() screen.Params {
	p := screen.DefaultParams()
	p.MinAvgQuoteVolume = 300000
	p.MinPrice = 0.005
	return p
}

func newTestScanner(t *testing.T, universe UniverseLister, series SeriesSource, notifier Notifier) (*Scanner, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan_results.csv")
	reporter := screen.NewCSVReporter(path)
	return New(zerolog.Nop(), universe, series, reporter, notifier, testParams(), 180), path
}

func TestRunSkipsEmptySeriesAndReportsMatch(t *testing.T) {
	universe := &fakeUniverse{symbols: []string{"AAAUSDT", "BBBUSDT"}}
	series := &fakeSeries{data: map[string]market.Series{
		"AAAUSDT": {},
		"BBBUSDT": qualifyingSeries(),
	}}
	notifier := &fakeNotifier{}
	scanner, path := newTestScanner(t, universe, series, notifier)

	result, err := scanner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Count() != 1 || result.Matches[0].Symbol != "BBBUSDT" {
		t.Fatalf("expected one BBBUSDT match, got %+v", result.Matches)
	}
	if result.Skipped != 1 {
		t.Fatalf("expected one empty-series skip, got %d", result.Skipped)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected report file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 data row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "BBBUSDT,") {
		t.Fatalf("unexpected data row %q", lines[1])
	}
	if len(notifier.docs) != 1 || notifier.docs[0] != path {
		t.Fatalf("expected document notification for %s, got %+v", path, notifier.docs)
	}
	if !strings.Contains(notifier.captions[0], "Symbols: 1") {
		t.Fatalf("unexpected caption %q", notifier.captions[0])
	}
}

func TestRunNoMatchesSendsTextWithDate(t *testing.T) {
	universe := &fakeUniverse{symbols: []string{"AAAUSDT"}}
	series := &fakeSeries{data: map[string]market.Series{
		"AAAUSDT": {{Close: 1, QuoteVolume: 1}}, // too short to qualify
	}}
	notifier := &fakeNotifier{}
	scanner, path := newTestScanner(t, universe, series, notifier)

	result, err := scanner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Count() != 0 {
		t.Fatalf("expected no matches, got %+v", result.Matches)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no report file, stat err=%v", err)
	}
	if len(notifier.texts) != 1 {
		t.Fatalf("expected one text notification, got %+v", notifier.texts)
	}
	today := time.Now().UTC().Format("2006-01-02")
	if !strings.Contains(notifier.texts[0], today) {
		t.Fatalf("expected UTC date %s in %q", today, notifier.texts[0])
	}
	if len(notifier.docs) != 0 {
		t.Fatalf("expected no document notification, got %+v", notifier.docs)
	}
}

func TestRunIsolatesPerSymbolFailures(t *testing.T) {
	universe := &fakeUniverse{symbols: []string{"CCCUSDT", "DDDUSDT"}}
	series := &fakeSeries{
		data: map[string]market.Series{"DDDUSDT": qualifyingSeries()},
		errs: map[string]error{"CCCUSDT": &exchange.DataSourceError{Path: "/api/v3/klines", Err: errors.New("retryable status 503")}},
	}
	scanner, _ := newTestScanner(t, universe, series, &fakeNotifier{})

	result, err := scanner.Run(context.Background())
	if err != nil {
		t.Fatalf("expected per-symbol isolation, got %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected one failed symbol, got %d", result.Failed)
	}
	if result.Count() != 1 || result.Matches[0].Symbol != "DDDUSDT" {
		t.Fatalf("expected scan to continue past the failure, got %+v", result.Matches)
	}
}

func TestRunFailsWhenUniverseUnavailable(t *testing.T) {
	universe := &fakeUniverse{err: &exchange.DataSourceError{Path: "/api/v3/exchangeInfo", Err: errors.New("retryable status 503")}}
	scanner, _ := newTestScanner(t, universe, &fakeSeries{}, &fakeNotifier{})

	if _, err := scanner.Run(context.Background()); err == nil {
		t.Fatalf("expected error when the universe cannot be listed")
	}
}

func TestSortMatchesRankingAndTieBreak(t *testing.T) {
	matches := []screen.Match{
		{Symbol: "LOW", Score: 1.2, AvgQuoteVolume: 9e6},
		{Symbol: "TIE_SMALL", Score: 2.2, AvgQuoteVolume: 1e6},
		{Symbol: "TOP", Score: 3.2, AvgQuoteVolume: 5e5},
		{Symbol: "TIE_BIG", Score: 2.2, AvgQuoteVolume: 4e6},
	}
	sortMatches(matches)
	var order []string
	for _, m := range matches {
		order = append(order, m.Symbol)
	}
	want := []string{"TOP", "TIE_BIG", "TIE_SMALL", "LOW"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected %v, got %v", want, order)
	}

	// Re-sorting a sorted list keeps the order (stable tie-break).
	again := append([]screen.Match(nil), matches...)
	sortMatches(again)
	if !reflect.DeepEqual(matches, again) {
		t.Fatalf("sort not idempotent: %+v vs %+v", matches, again)
	}
}
