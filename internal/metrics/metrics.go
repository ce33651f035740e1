package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SymbolsScannedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "screener_symbols_scanned_total", Help: "Symbols processed per scan, by outcome"},
		[]string{"outcome"},
	)
	MatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "screener_matches_total", Help: "Match records produced across all scans"},
	)
	MirrorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "screener_mirror_requests_total", Help: "Data source requests, by mirror and outcome"},
		[]string{"mirror", "outcome"},
	)
	ScanDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screener_scan_duration_seconds",
			Help:    "Wall-clock duration of a full scan",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(SymbolsScannedTotal, MatchesTotal, MirrorRequestsTotal, ScanDurationSeconds)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
