// Command detect runs whale detection over stored or file-based flows,
// cross-checks the streaming detector against the batch builder and
// optionally persists the events.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"

	"wallet-signal-lab/internal/config"
	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/ingestion"
	"wallet-signal-lab/internal/logger"
	"wallet-signal-lab/internal/observability"
	"wallet-signal-lab/internal/storage"
	chstore "wallet-signal-lab/internal/storage/clickhouse"
	"wallet-signal-lab/internal/storage/migrations"
	pgstore "wallet-signal-lab/internal/storage/postgres"
	"wallet-signal-lab/internal/verification"
	"wallet-signal-lab/internal/whale"
)

func main() {
	mint := flag.String("mint", "", "Token mint (required with Postgres input)")
	input := flag.String("input", "", "Read flows from a JSONL file instead of Postgres")
	persist := flag.Bool("persist", false, "Write events and whale states to Postgres (and ClickHouse when enabled)")
	mode := flag.String("mode", "", "Threshold mode: fixed or dynamic (overrides DETECTION_MODE)")
	liquidity := flag.String("liquidity-sol", "", "Pool liquidity in SOL for dynamic mode")
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
	log := logger.Get().Named("detect")

	if *mode != "" {
		cfg.Detection.Mode = *mode
	}
	if *liquidity != "" {
		cfg.Detection.LiquiditySOL = *liquidity
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid config", "error", err)
	}
	if *input == "" && *mint == "" {
		log.Fatal("--mint or --input is required")
	}

	thresholds, err := cfg.Detection.Thresholds()
	if err != nil {
		log.Fatalw("build thresholds", "error", err)
	}

	ctx := context.Background()
	var pool *pgstore.Pool
	if *input == "" || *persist {
		pool, err = pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatalw("connect postgres", "error", err)
		}
		defer pool.Close()
		if _, err := migrations.RunPostgresMigrations(ctx, pool, log); err != nil {
			log.Fatalw("migrate postgres", "error", err)
		}
	}

	flows, err := loadFlows(ctx, pool, *input, *mint)
	if err != nil {
		log.Fatalw("load flows", "error", err)
	}
	ingestion.SortFlows(flows)

	streaming := whale.NewDetector(thresholds).ProcessAll(flows)
	batch := whale.BuildEvents(flows, thresholds)
	report := verification.Reconcile(batch, streaming)
	observability.DefaultMetrics.ReconcileDivergences.Set(float64(
		len(report.MissingFromActual) + len(report.MissingFromExpect) + len(report.Divergences)))

	printSummary(flows, streaming, thresholds)
	fmt.Printf("streaming vs batch: %d matched, %d missing, %d extra, %d divergent fields\n",
		report.MatchedCount, len(report.MissingFromActual), len(report.MissingFromExpect), len(report.Divergences))

	if *persist {
		if err := persistEvents(ctx, cfg, pool, streaming, log); err != nil {
			log.Fatalw("persist events", "error", err)
		}
	}

	if !report.Match() {
		log.Errorw("streaming and batch detection diverge", "divergences", len(report.Divergences))
		logger.Sync()
		os.Exit(1)
	}
}

func loadFlows(ctx context.Context, pool *pgstore.Pool, input, mint string) ([]*domain.Flow, error) {
	if input == "" {
		return pgstore.NewFlowStore(pool).GetByMint(ctx, mint)
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	res, err := ingestion.ReadJSONL(f)
	if err != nil {
		return nil, err
	}
	if mint == "" {
		return res.Flows, nil
	}
	out := res.Flows[:0]
	for _, fl := range res.Flows {
		if fl.Mint == mint {
			out = append(out, fl)
		}
	}
	return out, nil
}

func persistEvents(ctx context.Context, cfg *config.Config, pool *pgstore.Pool, events []domain.WhaleEvent, log *logger.Logger) error {
	ptrs := make([]*domain.WhaleEvent, len(events))
	for i := range events {
		ptrs[i] = &events[i]
	}
	inserted, err := insertNew(ctx, pgstore.NewWhaleEventStore(pool), ptrs)
	if err != nil {
		return fmt.Errorf("postgres whale events: %w", err)
	}

	states := whale.Summarize(events)
	statePtrs := make([]*domain.WhaleState, len(states))
	for i := range states {
		statePtrs[i] = &states[i]
	}
	if err := pgstore.NewWhaleStateStore(pool).Upsert(ctx, statePtrs); err != nil {
		return fmt.Errorf("postgres whale states: %w", err)
	}
	log.Infow("persisted to postgres", "events", inserted, "existing", len(ptrs)-inserted, "states", len(statePtrs))

	if !cfg.ClickHouse.Enabled {
		return nil
	}
	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN, log)
	if err != nil {
		return fmt.Errorf("migrate clickhouse: %w", err)
	}
	defer conn.Close()
	inserted, err = insertNew(ctx, chstore.NewWhaleEventStore(conn), ptrs)
	if err != nil {
		return fmt.Errorf("clickhouse whale events: %w", err)
	}
	log.Infow("persisted to clickhouse", "events", inserted)
	return nil
}

// insertNew writes events one at a time so a re-run skips what is already stored.
func insertNew(ctx context.Context, store storage.WhaleEventStore, events []*domain.WhaleEvent) (int, error) {
	n := 0
	for _, ev := range events {
		err := store.Insert(ctx, ev)
		if errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func printSummary(flows []*domain.Flow, events []domain.WhaleEvent, t whale.Thresholds) {
	var volume int64
	wallets := make(map[string]struct{})
	for _, f := range flows {
		volume += f.Amount
		wallets[f.Wallet] = struct{}{}
	}
	fmt.Printf("flows:    %s from %s wallets, %s SOL total\n",
		humanize.Comma(int64(len(flows))), humanize.Comma(int64(len(wallets))),
		whale.LamportsToSOL(volume).StringFixed(2))
	fmt.Printf("single-tx threshold: %s SOL\n", whale.LamportsToSOL(t.SingleTx).String())

	byType := make(map[string]int)
	for _, ev := range events {
		byType[ev.EventType]++
	}
	types := make([]string, 0, len(byType))
	for k := range byType {
		types = append(types, k)
	}
	sort.Strings(types)

	fmt.Printf("events:   %s\n", humanize.Comma(int64(len(events))))
	for _, k := range types {
		fmt.Printf("  %-24s %s\n", k, humanize.Comma(int64(byType[k])))
	}
}
