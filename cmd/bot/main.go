package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swiftpay-bot/internal/bot"
	"swiftpay-bot/internal/breaker"
	"swiftpay-bot/internal/config"
	"swiftpay-bot/internal/events"
	"swiftpay-bot/internal/gateway"
	"swiftpay-bot/internal/notify"
	"swiftpay-bot/internal/observability"
	"swiftpay-bot/internal/reconcile"
	"swiftpay-bot/internal/solana"
	"swiftpay-bot/internal/storage"
	chstore "swiftpay-bot/internal/storage/clickhouse"
	"swiftpay-bot/internal/storage/migrations"
	pgstore "swiftpay-bot/internal/storage/postgres"
)

func main() {
	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	// Start metrics server if enabled
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(cfg.DrainTimeout + 30*time.Second):
			logger.Println("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, cfg, logger)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	signer, err := solana.KeypairFromBase58(cfg.BotSecretKey)
	if err != nil {
		return err
	}
	logger.Printf("Bot identity: %s", signer.PublicKey())

	// A bot that cannot reach the ledger must not start half-configured.
	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)
	if err := rpc.GetHealth(ctx); err != nil {
		return fmt.Errorf("rpc health check: %w", err)
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return err
	}
	auditStore := pgstore.NewAuditStore(pool)

	// Raw log archive is optional; the bot runs without ClickHouse.
	var archiveStore storage.LogArchiveStore
	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		archiveStore = chstore.NewLogArchiveStore(conn)
	} else {
		logger.Println("CLICKHOUSE_DSN not set, raw log archiving disabled")
	}

	ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil, logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	gatewayBreaker := breaker.New(breaker.Config{
		Name:             "gateway",
		FailureThreshold: uint32(cfg.GatewayFailureThreshold),
		ResetTimeout:     cfg.GatewayResetTimeout,
	}, logger)
	rpcBreaker := breaker.New(breaker.Config{
		Name:             "rpc",
		FailureThreshold: uint32(cfg.RPCFailureThreshold),
		ResetTimeout:     cfg.RPCResetTimeout,
	}, logger)

	payoutGateway := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey)

	var deliverer notify.Deliverer = notify.NewHTTPDeliverer(cfg.NotifierBaseURL, cfg.NotifierToken)
	notifier := notify.NewDispatcher(deliverer, logger)

	confirmer := reconcile.NewConfirmer(reconcile.ConfirmerOptions{
		RPC:            rpc,
		RPCBreaker:     rpcBreaker,
		Signer:         signer,
		ProgramID:      cfg.ProgramID,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})

	engine := reconcile.NewEngine(reconcile.EngineOptions{
		Audit:           auditStore,
		Gateway:         payoutGateway,
		GatewayBreaker:  gatewayBreaker,
		Notifier:        notifier,
		Confirmer:       confirmer,
		Resolver:        confirmer,
		SettlementDelay: cfg.SettlementDelay,
		Logger:          logger,
	})

	runner := bot.NewRunner(bot.RunnerOptions{
		WS:           ws,
		RPC:          rpc,
		Parser:       events.NewParser(logger),
		Engine:       engine,
		Archive:      archiveStore,
		ProgramID:    cfg.ProgramID,
		DrainTimeout: cfg.DrainTimeout,
		Logger:       logger,
	})

	logger.Printf("Watching program %s", cfg.ProgramID)
	return runner.Run(ctx)
}
