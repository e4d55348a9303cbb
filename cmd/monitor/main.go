// Command monitor follows one token live over the Solana WebSocket API and
// runs whale, silence and lifecycle detection on every new flow.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-signal-lab/internal/config"
	"wallet-signal-lab/internal/ingestion"
	"wallet-signal-lab/internal/lifecycle"
	"wallet-signal-lab/internal/logger"
	"wallet-signal-lab/internal/monitor"
	"wallet-signal-lab/internal/observability"
	"wallet-signal-lab/internal/publish"
	"wallet-signal-lab/internal/solana"
	chstore "wallet-signal-lab/internal/storage/clickhouse"
	"wallet-signal-lab/internal/storage/migrations"
	pgstore "wallet-signal-lab/internal/storage/postgres"
	redisstore "wallet-signal-lab/internal/storage/redis"
)

func main() {
	mint := flag.String("mint", "", "Token mint to monitor (required)")
	httpAddr := flag.String("http-addr", "", "HTTP address for /health, /metrics and /status (overrides HTTP_ADDR)")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint (overrides SOLANA_RPC_URL)")
	wsEndpoint := flag.String("ws-endpoint", "", "Solana WebSocket endpoint (overrides SOLANA_WS_URL)")
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
	log := logger.Get().Named("monitor")

	if *mint == "" {
		log.Fatal("--mint is required")
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	if *rpcEndpoint != "" {
		cfg.Solana.RPCURL = *rpcEndpoint
	}
	if *wsEndpoint != "" {
		cfg.Solana.WSURL = *wsEndpoint
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		sig := <-sigCh
		log.Infow("received signal, shutting down", "signal", sig)
		cancel()

		select {
		case sig := <-sigCh:
			log.Warnw("received second signal, forcing exit", "signal", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, log, *mint)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalw("monitor failed", "error", err)
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, mint string) error {
	thresholds, err := cfg.Detection.Thresholds()
	if err != nil {
		return err
	}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	if _, err := migrations.RunPostgresMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}

	checks := map[string]monitor.HealthCheck{"postgres": pool.Health}
	sinks := []monitor.EventSink{
		monitor.NewStoreSink(monitor.StoreSinkOptions{
			Name:        "postgres",
			Flows:       pgstore.NewFlowStore(pool),
			Whales:      pgstore.NewWhaleEventStore(pool),
			Silences:    pgstore.NewSilenceEventStore(pool),
			Transitions: pgstore.NewTransitionStore(pool),
			Signals:     pgstore.NewWalletSignalStore(pool),
		}),
	}

	if cfg.ClickHouse.Enabled {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN, log)
		if err != nil {
			return fmt.Errorf("migrate clickhouse: %w", err)
		}
		defer conn.Close()
		sinks = append(sinks, monitor.NewStoreSink(monitor.StoreSinkOptions{
			Name:   "clickhouse",
			Whales: chstore.NewWhaleEventStore(conn),
		}))
		checks["clickhouse"] = conn.Health
	}

	if cfg.Kafka.Enabled {
		pub := publish.NewPublisher(cfg.Kafka.Brokers, publish.Topics{
			Whale:      cfg.Kafka.WhaleTopic,
			Silence:    cfg.Kafka.SilenceTopic,
			Signal:     cfg.Kafka.SignalTopic,
			Transition: cfg.Kafka.TransitionTopic,
		}, log)
		defer pub.Close()
		sinks = append(sinks, monitor.NewPublishSink(pub))
	}

	if cfg.Redis.Enabled {
		cache, err := redisstore.NewStatusCache(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.StatusTTL,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer cache.Close()
		sinks = append(sinks, monitor.NewStatusCacheSink(cache))
		checks["redis"] = cache.Health
	}

	proc := monitor.NewProcessor(monitor.Options{
		Mint:              mint,
		Thresholds:        thresholds,
		Silence:           cfg.Detection.Silence(),
		Lifecycle:         lifecycle.DefaultConfig(),
		ApplyActivityDrop: cfg.Detection.ApplyActivityDrop,
		Sinks:             sinks,
		Metrics:           observability.DefaultMetrics,
		Logger:            log,
	})
	log.Infow("monitor session started", "session_id", proc.SessionID(), "mint", mint, "mode", cfg.Detection.Mode)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           monitor.NewHTTPHandler(proc, time.Now(), checks),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("starting http server", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("http server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	rpc := observability.InstrumentRPC(solana.NewHTTPClient(cfg.Solana.RPCURL,
		solana.WithTimeout(cfg.Solana.Timeout),
		solana.WithMaxRetries(cfg.Solana.MaxRetries),
		solana.WithRateLimit(cfg.Solana.RateLimit, cfg.Solana.Burst),
	), observability.DefaultMetrics)

	ws, err := solana.NewWSClient(ctx, cfg.Solana.WSURL, nil)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	defer ws.Close()
	ws.SetLogger(log.Named("ws"))

	flows, err := ingestion.NewWSFlowSource(ws, rpc, log).Subscribe(ctx, mint)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	err = proc.Run(ctx, flows)
	st := proc.Status()
	log.Infow("monitor session finished",
		"session_id", st.SessionID,
		"flows", st.Flows,
		"whale_events", st.WhaleEvents,
		"silence_events", st.SilenceEvents,
		"transitions", st.Transitions,
		"state", st.State,
	)
	return err
}
