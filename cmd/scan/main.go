// Binary scan runs a single screening pass and exits.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/minhchau1982/macd-screener-bot/internal/config"
	"github.com/minhchau1982/macd-screener-bot/internal/exchange"
	"github.com/minhchau1982/macd-screener-bot/internal/notify"
	"github.com/minhchau1982/macd-screener-bot/internal/scan"
	"github.com/minhchau1982/macd-screener-bot/internal/screen"
	"github.com/minhchau1982/macd-screener-bot/internal/util"
)

func main() {
	_ = godotenv.Load() // best-effort

	var (
		configPath = flag.String("config", "", "path to YAML config (optional)")
		minVol     = flag.Float64("min-vol", 300000, "minimum 6-week average quote volume")
		minPrice   = flag.Float64("min-price", 0.005, "minimum last close price")
		limit      = flag.Int("limit", 180, "number of weekly bars to request")
		out        = flag.String("out", "scan_results.csv", "output CSV path")
	)
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
	// Explicit flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "min-vol":
			cfg.Screen.MinAvgQuoteVolume = *minVol
		case "min-price":
			cfg.Screen.MinPrice = *minPrice
		case "limit":
			cfg.Screen.Bars = *limit
		case "out":
			cfg.Screen.OutputPath = *out
		}
	})

	log := util.NewLogger(cfg.App.Name, cfg.App.LogLevel)
	scanner := buildScanner(log, cfg)

	result, err := scanner.Run(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("scan failed")
	}
	log.Info().
		Int("scanned", result.Scanned).
		Int("matches", result.Count()).
		Int("failed", result.Failed).
		Msg("scan complete")
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
