package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-signal-lab/internal/config"
	"wallet-signal-lab/internal/ingestion"
	"wallet-signal-lab/internal/logger"
	"wallet-signal-lab/internal/observability"
	"wallet-signal-lab/internal/solana"
	"wallet-signal-lab/internal/storage/migrations"
	pgstore "wallet-signal-lab/internal/storage/postgres"
)

func main() {
	mint := flag.String("mint", "", "Token mint to ingest (required)")
	fromTime := flag.String("from-time", "", "Start time, inclusive (RFC3339)")
	toTime := flag.String("to-time", "", "End time, exclusive (RFC3339, default now)")
	input := flag.String("input", "", "Load flows from a JSONL file instead of RPC")
	resume := flag.Bool("resume", false, "Continue from the saved ingestion progress")
	pageSize := flag.Int("page-size", 0, "Signatures per RPC page (0 = default)")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint (overrides SOLANA_RPC_URL)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides POSTGRES_DSN)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get().Named("ingest")

	if *mint == "" {
		log.Fatal("--mint is required")
	}
	if *rpcEndpoint != "" {
		cfg.Solana.RPCURL = *rpcEndpoint
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}

	from, to, err := parseRange(*fromTime, *toTime)
	if err != nil {
		log.Fatalw("invalid time range", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go handleSignals(log, cancel, done)

	n, err := run(ctx, cfg, log, *mint, from, to, *input, *resume, *pageSize)
	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalw("ingestion failed", "error", err)
	}
	log.Infow("ingestion complete", "mint", *mint, "flows", n)
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, mint string, from, to int64, input string, resume bool, pageSize int) (int, error) {
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return 0, err
	}
	defer pool.Close()

	res, err := migrations.RunPostgresMigrations(ctx, pool, log)
	if err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	log.Infow("postgres schema ready", "applied", len(res.Applied), "skipped", len(res.Skipped))

	var source ingestion.FlowSource
	if input != "" {
		source, err = fileSource(input, log)
		if err != nil {
			return 0, err
		}
	} else {
		client := solana.NewHTTPClient(cfg.Solana.RPCURL,
			solana.WithTimeout(cfg.Solana.Timeout),
			solana.WithMaxRetries(cfg.Solana.MaxRetries),
			solana.WithRateLimit(cfg.Solana.RateLimit, cfg.Solana.Burst),
		)
		rpc := observability.InstrumentRPC(client, observability.DefaultMetrics)
		src := ingestion.NewRPCFlowSource(rpc, log)
		if pageSize > 0 {
			src = src.WithPageSize(pageSize)
		}
		source = src
	}

	manager := ingestion.NewManager(ingestion.ManagerOptions{
		Source:   source,
		Store:    pgstore.NewFlowStore(pool),
		Progress: pgstore.NewIngestionProgressStore(pool),
		Logger:   log,
	})

	if resume {
		return manager.Resume(ctx, mint, from, to)
	}
	return manager.IngestFlows(ctx, mint, from, to)
}

func fileSource(path string, log *logger.Logger) (ingestion.FlowSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	res, err := ingestion.ReadJSONL(f)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	observability.DefaultMetrics.FlowsSkipped.WithLabelValues("invalid").Add(float64(res.Skipped))
	log.Infow("loaded flow file", "path", path, "flows", len(res.Flows), "skipped", res.Skipped)
	return ingestion.NewStaticFlowSource(res.Flows), nil
}

func parseRange(fromStr, toStr string) (int64, int64, error) {
	var from int64
	to := time.Now().Unix()
	if fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return 0, 0, fmt.Errorf("parse from-time: %w", err)
		}
		from = t.Unix()
	}
	if toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return 0, 0, fmt.Errorf("parse to-time: %w", err)
		}
		to = t.Unix()
	}
	if to <= from {
		return 0, 0, errors.New("to-time must be after from-time")
	}
	return from, to, nil
}

// handleSignals cancels on the first signal and exits on a second one or
// when shutdown takes longer than 30s.
func handleSignals(log *logger.Logger, cancel context.CancelFunc, done <-chan struct{}) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infow("received signal, shutting down", "signal", sig)
		cancel()
	case <-done:
		return
	}

	select {
	case sig := <-sigCh:
		log.Warnw("received second signal, forcing exit", "signal", sig)
		os.Exit(1)
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timed out after 30s, forcing exit")
		os.Exit(1)
	case <-done:
	}
}
