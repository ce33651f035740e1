// Package web exposes the HTTP trigger front end: a banner, a health check,
// and an on-demand scan endpoint returning a JSON status object.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhchau1982/macd-screener-bot/internal/scan"
)

// RunFunc executes one scan under the request's context.
type RunFunc func(ctx context.Context) (*scan.Result, error)

// Server routes the trigger endpoints onto a scan runner and serializes
// concurrent triggers.
type Server struct {
	log zerolog.Logger
	run RunFunc
	mu  sync.Mutex
}

// NewServer wraps a scan runner.
func NewServer(log zerolog.Logger, run RunFunc) *Server {
	return &Server{log: log, run: run}
}

// Handler returns the route table for the trigger front end.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/run", s.handleRun)
	return mux
}

type runResponse struct {
	Status   string `json:"status"`
	RanAtUTC string `json:"ran_at_utc,omitempty"`
	Matches  int    `json:"matches,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("MACD screener bot is running\n"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	// One scan at a time; the core loop is deliberately single-threaded.
	s.mu.Lock()
	result, err := s.run(r.Context())
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Msg("scan failed")
		writeJSON(w, http.StatusInternalServerError, runResponse{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		Status:   "ok",
		RanAtUTC: time.Now().UTC().Format(time.RFC3339),
		Matches:  result.Count(),
	})
}

func writeJSON(w http.ResponseWriter, code int, body runResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
