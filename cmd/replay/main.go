package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"wallet-signal-lab/internal/config"
	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/ingestion"
	"wallet-signal-lab/internal/lifecycle"
	"wallet-signal-lab/internal/logger"
	"wallet-signal-lab/internal/monitor"
	"wallet-signal-lab/internal/replay"
	"wallet-signal-lab/internal/storage"
	"wallet-signal-lab/internal/storage/memory"
	pgstore "wallet-signal-lab/internal/storage/postgres"
	"wallet-signal-lab/internal/verification"
)

// replayOutput is the JSON form of a replay.
type replayOutput struct {
	Status      monitor.Status                  `json:"status"`
	Transitions []domain.StateTransition        `json:"transitions"`
	Silence     map[string]domain.SilenceStatus `json:"silence"`
	Signals     []domain.WalletSignal           `json:"signals"`
	WhaleEvents int                             `json:"whale_events"`
	Verified    *bool                           `json:"verified,omitempty"`
}

func main() {
	mint := flag.String("mint", "", "Token mint to replay (required)")
	fromTime := flag.String("from-time", "", "Start time (RFC3339)")
	toTime := flag.String("to-time", "", "End time (RFC3339)")
	input := flag.String("input", "", "Replay a JSONL flow file instead of Postgres")
	verify := flag.Bool("verify", false, "Check stored whale events against a recomputation")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides POSTGRES_DSN)")
	outputJSON := flag.Bool("json", false, "Output as JSON")

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
	log := logger.Get().Named("replay")

	if *mint == "" {
		log.Fatal("--mint is required")
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}
	if *verify && *input != "" {
		log.Fatal("--verify reads stored events and cannot be combined with --input")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infow("received signal, cancelling replay", "signal", sig)
		cancel()
	}()

	thresholds, err := cfg.Detection.Thresholds()
	if err != nil {
		log.Fatalw("build thresholds", "error", err)
	}

	var flowStore storage.FlowStore
	var eventStore storage.WhaleEventStore
	if *input != "" {
		flowStore, err = loadFile(ctx, *input)
		if err != nil {
			log.Fatalw("load input", "error", err)
		}
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatalw("connect postgres", "error", err)
		}
		defer pool.Close()
		flowStore = pgstore.NewFlowStore(pool)
		eventStore = pgstore.NewWhaleEventStore(pool)
	}

	proc := monitor.NewProcessor(monitor.Options{
		Mint:              *mint,
		Thresholds:        thresholds,
		Silence:           cfg.Detection.Silence(),
		Lifecycle:         lifecycle.DefaultConfig(),
		ApplyActivityDrop: cfg.Detection.ApplyActivityDrop,
		Logger:            log,
	})
	runner := replay.NewRunner(flowStore)
	engine := replay.NewProcessorEngine(proc)

	start := time.Now()
	if *fromTime != "" || *toTime != "" {
		from, to, rangeErr := parseRange(*fromTime, *toTime)
		if rangeErr != nil {
			log.Fatalw("invalid time range", "error", rangeErr)
		}
		err = runner.Run(ctx, *mint, from, to, engine)
	} else {
		err = runner.RunAll(ctx, *mint, engine)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalw("replay failed", "error", err)
	}

	out := replayOutput{
		Status:      proc.Status(),
		Transitions: proc.Transitions(),
		Silence:     proc.SilenceStatuses(),
		Signals:     proc.WalletSignals(),
		WhaleEvents: len(proc.WhaleEvents()),
	}

	if *verify {
		report, err := verification.NewVerifier(flowStore, eventStore, thresholds, log).VerifyStored(ctx, *mint)
		if err != nil {
			log.Fatalw("verify stored events", "error", err)
		}
		ok := report.Match()
		out.Verified = &ok
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Fatalw("encode output", "error", err)
		}
	} else {
		printText(out, proc, time.Since(start))
	}

	if out.Verified != nil && !*out.Verified {
		logger.Sync()
		os.Exit(1)
	}
}

func loadFile(ctx context.Context, path string) (storage.FlowStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := ingestion.ReadJSONL(f)
	if err != nil {
		return nil, err
	}
	store := memory.NewFlowStore()
	if _, err := store.InsertNew(ctx, res.Flows); err != nil {
		return nil, err
	}
	return store, nil
}

func printText(out replayOutput, proc *monitor.Processor, elapsed time.Duration) {
	st := out.Status
	fmt.Printf("mint:         %s\n", st.Mint)
	fmt.Printf("flows:        %s (%d skipped) in %s\n", humanize.Comma(int64(st.Flows)), st.Skipped, elapsed.Round(time.Millisecond))
	fmt.Printf("whale events: %s\n", humanize.Comma(int64(out.WhaleEvents)))
	fmt.Printf("signals:      %s (%d early wallets)\n", humanize.Comma(int64(len(out.Signals))), st.EarlyWallets)
	fmt.Printf("final state:  %s (episode %d)\n", st.State, st.EpisodeID)

	fmt.Println("\ntransitions:")
	for _, tr := range out.Transitions {
		fmt.Printf("  %s  %-16s -> %-16s %-2s %s\n",
			time.Unix(tr.Time, 0).UTC().Format(time.RFC3339), tr.From, tr.To, tr.Severity, tr.Trigger)
	}

	sum := proc.SilenceSummary()
	fmt.Printf("\nsilent wallets: %d of %d eligible (%.1f%%)\n", sum.Silent, sum.Eligible, sum.Pct*100)
	if out.Verified != nil {
		fmt.Printf("stored events verified: %t\n", *out.Verified)
	}
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
