// Package screen applies the weekly MACD early-reversal rule set to a series
// and renders qualifying symbols into the scan report.
package screen

import (
	"math"

	"github.com/minhchau1982/macd-screener-bot/internal/indicator"
	"github.com/minhchau1982/macd-screener-bot/internal/market"
)

// Screen defaults. The near-above tolerance and the score weights are
// empirical constants carried over from live tuning; they have no derivation,
// which is exactly why they stay overridable instead of baked into the code.
const (
	DefaultMinBars            = 35
	DefaultVolumeWindow       = 6
	DefaultFastSpan           = 12
	DefaultSlowSpan           = 26
	DefaultSignalSpan         = 9
	DefaultNearAboveTolerance = 0.15
	DefaultCrossWeight        = 1.0
	DefaultNearAboveWeight    = 0.5
	DefaultExpandWeight       = 0.7
	DefaultVolumeScoreScale   = 10.0
	DefaultVolumeScoreCap     = 1.0
)

// Params bundles the thresholds and tunable constants of the screen.
// Zero-valued tunables are replaced by the defaults above; the two gate
// thresholds (volume, price) are taken as given, including zero.
type Params struct {
	MinAvgQuoteVolume float64
	MinPrice          float64

	MinBars      int
	VolumeWindow int
	FastSpan     int
	SlowSpan     int
	SignalSpan   int

	// NearAboveTolerance is relative to |signal|: MACD counts as "just above"
	// when |macd-signal| < max(1e-9, tolerance*|signal|).
	NearAboveTolerance float64

	CrossWeight      float64
	NearAboveWeight  float64
	ExpandWeight     float64
	VolumeScoreScale float64
	VolumeScoreCap   float64
}

// DefaultParams returns the screen with its stock thresholds and weights.
func DefaultParams() Params {
	return Params{
		MinBars:            DefaultMinBars,
		VolumeWindow:       DefaultVolumeWindow,
		FastSpan:           DefaultFastSpan,
		SlowSpan:           DefaultSlowSpan,
		SignalSpan:         DefaultSignalSpan,
		NearAboveTolerance: DefaultNearAboveTolerance,
		CrossWeight:        DefaultCrossWeight,
		NearAboveWeight:    DefaultNearAboveWeight,
		ExpandWeight:       DefaultExpandWeight,
		VolumeScoreScale:   DefaultVolumeScoreScale,
		VolumeScoreCap:     DefaultVolumeScoreCap,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MinBars <= 0 {
		p.MinBars = d.MinBars
	}
	if p.VolumeWindow <= 0 {
		p.VolumeWindow = d.VolumeWindow
	}
	if p.FastSpan <= 0 {
		p.FastSpan = d.FastSpan
	}
	if p.SlowSpan <= 0 {
		p.SlowSpan = d.SlowSpan
	}
	if p.SignalSpan <= 0 {
		p.SignalSpan = d.SignalSpan
	}
	if p.NearAboveTolerance <= 0 {
		p.NearAboveTolerance = d.NearAboveTolerance
	}
	if p.CrossWeight <= 0 {
		p.CrossWeight = d.CrossWeight
	}
	if p.NearAboveWeight <= 0 {
		p.NearAboveWeight = d.NearAboveWeight
	}
	if p.ExpandWeight <= 0 {
		p.ExpandWeight = d.ExpandWeight
	}
	if p.VolumeScoreScale <= 0 {
		p.VolumeScoreScale = d.VolumeScoreScale
	}
	if p.VolumeScoreCap <= 0 {
		p.VolumeScoreCap = d.VolumeScoreCap
	}
	return p
}

// Match is one qualifying symbol's report row. All numeric fields are rounded
// to their reporting precision at construction time.
type Match struct {
	Symbol         string
	Close          float64
	AvgQuoteVolume float64
	MACD           float64
	Signal         float64
	Hist           float64
	Score          float64
}

// Evaluate decides match/no-match for one series. Pure function: nil means
// the series failed a gate or the signal conditions; Symbol is left for the
// caller to fill in.
func Evaluate(series market.Series, p Params) *Match {
	p = p.withDefaults()
	if len(series) < p.MinBars {
		return nil
	}
	avgVol := series.AvgQuoteVolume(p.VolumeWindow)
	lastClose := series.LastClose()
	if math.IsNaN(avgVol) || avgVol < p.MinAvgQuoteVolume || lastClose < p.MinPrice {
		return nil
	}

	macd, signal, hist := indicator.MACD(series.Closes(), p.FastSpan, p.SlowSpan, p.SignalSpan)
	n := len(macd)
	if n < 2 {
		return nil
	}
	macdPrev, macdNow := macd[n-2], macd[n-1]
	sigPrev, sigNow := signal[n-2], signal[n-1]
	histPrev, histNow := hist[n-2], hist[n-1]

	crossed := crossedUp(macdPrev, macdNow, sigPrev, sigNow)
	near := nearAbove(macdPrev, macdNow, sigPrev, sigNow, p.NearAboveTolerance)
	if !((crossed || near) && macdNow < 0 && histNow > 0) {
		return nil
	}

	return &Match{
		Close:          round(lastClose, 8),
		AvgQuoteVolume: round(avgVol, 2),
		MACD:           round(macdNow, 6),
		Signal:         round(sigNow, 6),
		Hist:           round(histNow, 6),
		Score:          round(p.score(crossed, near, histNow > histPrev, avgVol), 3),
	}
}

// crossedUp reports a fresh upward crossover: at or below the signal on the
// previous bar, strictly above it now.
func crossedUp(macdPrev, macdNow, sigPrev, sigNow float64) bool {
	return macdPrev <= sigPrev && macdNow > sigNow
}

// nearAbove reports MACD sitting above the signal line, either freshly crossed
// or within the relative tolerance of it.
func nearAbove(macdPrev, macdNow, sigPrev, sigNow, tolerance float64) bool {
	if macdNow <= sigNow {
		return false
	}
	return macdPrev <= sigPrev || math.Abs(macdNow-sigNow) < math.Max(1e-9, tolerance*math.Abs(sigNow))
}

// score is a bounded weighted sum: crossover freshness, proximity state,
// expanding histogram, and a capped liquidity term so very-high-volume symbols
// cannot dominate on size alone.
func (p Params) score(crossed, near, expanding bool, avgVol float64) float64 {
	var score float64
	if crossed {
		score += p.CrossWeight
	}
	if near {
		score += p.NearAboveWeight
	}
	if expanding {
		score += p.ExpandWeight
	}
	score += math.Min(p.VolumeScoreCap, avgVol/(p.VolumeScoreScale*p.MinAvgQuoteVolume))
	return score
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
