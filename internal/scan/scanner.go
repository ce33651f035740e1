// Package scan drives the per-symbol screening loop: load the universe, fetch
// and evaluate each series in order, aggregate and rank matches, then hand the
// result to the report and notification collaborators.
package scan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhchau1982/macd-screener-bot/internal/market"
	"github.com/minhchau1982/macd-screener-bot/internal/metrics"
	"github.com/minhchau1982/macd-screener-bot/internal/screen"
)

// UniverseLister enumerates the instruments to screen, in scan order.
type UniverseLister interface {
	List(ctx context.Context) ([]string, error)
}

// SeriesSource retrieves the weekly series for one instrument.
type SeriesSource interface {
	FetchWeekly(ctx context.Context, symbol string, limit int) (market.Series, error)
}

// Reporter persists the ranked match list.
type Reporter interface {
	Write(matches []screen.Match) error
	Path() string
}

// Notifier delivers the report file or a no-matches status, best effort.
type Notifier interface {
	SendDocument(ctx context.Context, path, caption string) error
	SendText(ctx context.Context, text string) error
}

// progressEvery controls the cadence of scan progress log notices.
const progressEvery = 20

// Scanner owns one scan's collaborators. A single long-lived HTTP client sits
// behind the universe and series sources; the scanner itself keeps no state
// between runs.
type Scanner struct {
	log      zerolog.Logger
	universe UniverseLister
	series   SeriesSource
	reporter Reporter
	notifier Notifier
	params   screen.Params
	bars     int
}

// New wires a scanner from its collaborators. bars is the number of weekly
// bars requested per symbol.
func New(log zerolog.Logger, universe UniverseLister, series SeriesSource, reporter Reporter, notifier Notifier, params screen.Params, bars int) *Scanner {
	return &Scanner{
		log:      log,
		universe: universe,
		series:   series,
		reporter: reporter,
		notifier: notifier,
		params:   params,
		bars:     bars,
	}
}

// Result is the output of one scan run. Matches are sorted by score
// descending, ties broken by descending average quote volume.
type Result struct {
	Matches    []screen.Match
	Scanned    int
	Skipped    int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Count returns the number of match records.
func (r *Result) Count() int { return len(r.Matches) }

// Run executes one full scan. Failing to list the universe fails the run;
// any single symbol's failure is logged and skipped, never fatal.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	started := time.Now().UTC()
	defer func() {
		metrics.ScanDurationSeconds.Observe(time.Since(started).Seconds())
	}()

	symbols, err := s.universe.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}

	result := &Result{StartedAt: started}
	for i, symbol := range symbols {
		s.scanOne(ctx, symbol, result)
		if (i+1)%progressEvery == 0 {
			s.log.Info().Int("processed", i+1).Int("total", len(symbols)).Int("matches", len(result.Matches)).Msg("scan progress")
		}
	}

	sortMatches(result.Matches)
	result.FinishedAt = time.Now().UTC()
	s.deliver(ctx, result)
	return result, nil
}

func (s *Scanner) scanOne(ctx context.Context, symbol string, result *Result) {
	result.Scanned++
	series, err := s.series.FetchWeekly(ctx, symbol, s.bars)
	if err != nil {
		result.Failed++
		metrics.SymbolsScannedTotal.WithLabelValues("error").Inc()
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("skipping symbol after fetch failure")
		return
	}
	if len(series) == 0 {
		result.Skipped++
		metrics.SymbolsScannedTotal.WithLabelValues("empty").Inc()
		return
	}
	match := screen.Evaluate(series, s.params)
	if match == nil {
		metrics.SymbolsScannedTotal.WithLabelValues("no_match").Inc()
		return
	}
	match.Symbol = symbol
	result.Matches = append(result.Matches, *match)
	metrics.SymbolsScannedTotal.WithLabelValues("match").Inc()
	metrics.MatchesTotal.Inc()
}

// sortMatches ranks score descending with average quote volume as the
// tie-break. Stable, so re-sorting a sorted list is a no-op.
func sortMatches(matches []screen.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].AvgQuoteVolume > matches[j].AvgQuoteVolume
	})
}

// deliver hands the result to the report and notification collaborators.
// Both are best effort: errors are logged, never propagated.
func (s *Scanner) deliver(ctx context.Context, result *Result) {
	if len(result.Matches) == 0 {
		s.log.Info().Int("scanned", result.Scanned).Msg("no symbols matched the screen")
		if s.notifier == nil {
			return
		}
		text := fmt.Sprintf("No symbols matched the weekly MACD screen (UTC %s).", result.FinishedAt.Format("2006-01-02"))
		if err := s.notifier.SendText(ctx, text); err != nil {
			s.log.Warn().Err(err).Msg("text notification failed")
		}
		return
	}

	if s.reporter == nil {
		return
	}
	if err := s.reporter.Write(result.Matches); err != nil {
		s.log.Error().Err(err).Str("path", s.reporter.Path()).Msg("report write failed")
		return
	}
	s.log.Info().Int("matches", len(result.Matches)).Str("path", s.reporter.Path()).Msg("report written")
	if s.notifier == nil {
		return
	}
	caption := fmt.Sprintf("Weekly MACD screener\nSymbols: %d\nUTC: %s",
		len(result.Matches), result.FinishedAt.Format("2006-01-02 15:04"))
	if err := s.notifier.SendDocument(ctx, s.reporter.Path(), caption); err != nil {
		s.log.Warn().Err(err).Msg("document notification failed")
	}
}
