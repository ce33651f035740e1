// Binary server exposes the screening pipeline behind an HTTP trigger:
// GET /run starts a scan, GET /healthz answers health probes.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/minhchau1982/macd-screener-bot/internal/config"
	"github.com/minhchau1982/macd-screener-bot/internal/exchange"
	"github.com/minhchau1982/macd-screener-bot/internal/metrics"
	"github.com/minhchau1982/macd-screener-bot/internal/notify"
	"github.com/minhchau1982/macd-screener-bot/internal/scan"
	"github.com/minhchau1982/macd-screener-bot/internal/screen"
	"github.com/minhchau1982/macd-screener-bot/internal/util"
	"github.com/minhchau1982/macd-screener-bot/internal/web"
)

func main() {
	_ = godotenv.Load() // best-effort

	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			bootLog := util.NewLogger("macd-screener", "info")
			bootLog.Fatal().Err(err).Msg("load config")
		}
		cfg = loaded
	}

	log := util.NewLogger(cfg.App.Name, cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scanner := buildScanner(log, cfg)
	srv := &http.Server{
		Addr:    cfg.App.ListenAddr,
		Handler: web.NewServer(log, scanner.Run).Handler(),
	}

	go func() {
		log.Info().Str("addr", cfg.App.ListenAddr).Msg("trigger server up")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("trigger server stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildScanner(log zerolog.Logger, cfg *config.Config) *scan.Scanner {
	client := exchange.NewClient(log, cfg.DataSource.Mirrors,
		exchange.WithTimeout(time.Duration(cfg.DataSource.TimeoutMs)*time.Millisecond),
		exchange.WithBackoff(
			time.Duration(cfg.DataSource.BackoffBaseMs)*time.Millisecond,
			time.Duration(cfg.DataSource.BackoffMaxMs)*time.Millisecond,
		),
		exchange.WithRateLimit(cfg.DataSource.RequestsPerSec, cfg.DataSource.Burst),
	)
	params := screen.DefaultParams()
	params.MinAvgQuoteVolume = cfg.Screen.MinAvgQuoteVolume
	params.MinPrice = cfg.Screen.MinPrice

	return scan.New(log,
		exchange.NewUniverse(log, client, cfg.Screen.QuoteAsset),
		exchange.NewSeriesFetcher(log, client),
		screen.NewCSVReporter(cfg.Screen.OutputPath),
		notify.NewTelegram(log, cfg.Telegram.BotToken, cfg.Telegram.ChatID),
		params,
		cfg.Screen.Bars,
	)
}
