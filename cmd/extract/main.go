package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/freeeve/fendb/internal/extract"
	"github.com/freeeve/fendb/internal/fetch"
	"github.com/freeeve/fendb/internal/index"
	"github.com/freeeve/fendb/internal/ledger"
	"github.com/freeeve/fendb/internal/logx"
	"github.com/freeeve/fendb/internal/pipeline"
	"github.com/freeeve/fendb/internal/sink"
)

const requestTimeout = 10 * time.Second

// envConfig holds env-var defaults; flags override.
type envConfig struct {
	OutputFolder string `env:"FENDB_OUTPUT_FOLDER" envDefault:"LichessDatabase"`
	MinElo       int    `env:"FENDB_MIN_ELO" envDefault:"2200"`
	IndexURL     string `env:"FENDB_INDEX_URL"`
}

func main() {
	logger := logx.NewLogger()

	var defaults envConfig
	if err := env.Parse(&defaults); err != nil {
		logger.Fatal().Err(err).Msg("parse environment")
	}
	if defaults.IndexURL == "" {
		defaults.IndexURL = index.DefaultURL
	}

	var (
		outputFolder = flag.String("output-folder", defaults.OutputFolder, "Output folder for CSV, ledger, and cache")
		minElo       = flag.Int("min-elo", defaults.MinElo, "Minimum rating for both players")
		maxGames     = flag.Uint64("max-games", 0, "Maximum total games to process (0 = unlimited)")
		downloads    = flag.Int("downloads", 0, "Maximum archive downloads this run (0 = unlimited)")
		indexURL     = flag.String("index-url", defaults.IndexURL, "Archive index URL")
	)
	flag.Parse()

	logger.Info().
		Str("output_folder", *outputFolder).
		Int("min_elo", *minElo).
		Str("index_url", *indexURL).
		Msg("starting extract")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cacheDir := filepath.Join(*outputFolder, "tmp")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		logger.Fatal().Err(err).Msg("create output folder")
	}

	led, err := ledger.Open(filepath.Join(*outputFolder, "processed_files.txt"))
	if err != nil {
		logger.Fatal().Err(err).Msg("open ledger")
	}
	defer led.Close()

	out, err := sink.OpenCSV(filepath.Join(*outputFolder, sink.FileName))
	if err != nil {
		logger.Fatal().Err(err).Msg("open output")
	}
	defer out.Close()

	// Per-call timeouts only; a total request timeout would cut off
	// multi-gigabyte archive downloads mid-stream.
	client := &http.Client{
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: requestTimeout}).DialContext,
			TLSHandshakeTimeout:   requestTimeout,
			ResponseHeaderTimeout: requestTimeout,
		},
	}

	pipe := pipeline.New(
		pipeline.Config{
			IndexURL:     *indexURL,
			MinElo:       *minElo,
			MaxGames:     *maxGames,
			MaxDownloads: *downloads,
			Logger:       logger,
		},
		client,
		&fetch.Fetcher{Client: client, Dir: cacheDir},
		extract.SANParser{},
		led,
		out,
	)

	sum, err := pipe.Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("extract failed")
	}

	gps := 0.0
	if sum.Elapsed > 0 {
		gps = float64(sum.Games) / sum.Elapsed.Seconds()
	}
	logger.Info().
		Uint64("games", sum.Games).
		Uint64("kept", sum.Kept).
		Uint64("rows", sum.Rows).
		Int("archives_downloaded", sum.Archives).
		Int("archives_completed", sum.Completed).
		Int("archives_failed", sum.Failed).
		Dur("elapsed", sum.Elapsed).
		Float64("games_per_sec", gps).
		Msg("extract complete")
}
