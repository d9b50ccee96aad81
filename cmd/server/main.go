// Package main runs the options scanner API server: the SSE/WebSocket scan
// stream, the heatmap and universe endpoints, and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"options-scanner/internal/cache"
	"options-scanner/internal/config"
	"options-scanner/internal/heatmap"
	"options-scanner/internal/marketdata"
	"options-scanner/internal/scanner"
	"options-scanner/internal/server"
	"options-scanner/internal/storage"
	"options-scanner/internal/storage/memory"
	"options-scanner/internal/storage/migrations"
	pgstore "options-scanner/internal/storage/postgres"
	"options-scanner/internal/universe"
)

func main() {
	// Load .env file if exists; system env vars win.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	snapshotPath := flag.String("snapshot", "", "Path to fundamentals snapshot JSON (overrides config)")
	dsn := flag.String("postgres-dsn", "", "PostgreSQL DSN for reference data (overrides config)")
	addr := flag.String("addr", "", "Listen address, e.g. :8000 (overrides config port)")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *configPath == "" {
		*configPath = "config.yaml"
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *snapshotPath != "" {
		cfg.Snapshot.Path = *snapshotPath
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%d", cfg.Server.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshot, universes, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	provider := marketdata.NewYahooClient(cfg.Provider.Endpoint,
		marketdata.WithTimeout(cfg.ProviderTimeout()),
		marketdata.WithMaxRetries(cfg.Provider.MaxRetries),
	)

	sharedCache := cache.New()

	sc := scanner.New(scanner.Options{
		Provider:  provider,
		Snapshot:  snapshot,
		Cache:     sharedCache,
		Universes: universes,
		WaveSize:  cfg.Scan.WaveSize,
		PoolSize:  cfg.Scan.PoolSize,
		WavePause: cfg.WavePause(),
		PriceTTL:  cfg.PriceTTL(),
		Logger:    log.New(os.Stdout, "[scanner] ", log.LstdFlags),
	})

	hm := heatmap.New(heatmap.Options{
		Provider: provider,
		Snapshot: snapshot,
		Cache:    sharedCache,
		TTL:      cfg.HeatmapTTL(),
		Logger:   log.New(os.Stdout, "[heatmap] ", log.LstdFlags),
	})

	srv := server.New(server.Options{
		Scanner:    sc,
		Heatmap:    hm,
		Cache:      sharedCache,
		CORSOrigin: cfg.Server.CORSOrigin,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:        listenAddr,
		Handler:     srv.Handler(),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// WriteTimeout stays zero: scan streams are long-lived.
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-shutdownCtx.Done():
		}
	}()

	logger.Printf("Listening on %s", listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores builds the reference-data stores. With a Postgres DSN the
// database is authoritative for fundamentals and universe membership
// (migrations applied on boot); otherwise the JSON snapshot file is loaded
// into memory and the compiled-in universe lists are used. A missing snapshot
// file yields an empty store and every ticker takes the provider fallback
// path.
func createStores(ctx context.Context, cfg config.Config, logger *log.Logger) (storage.FundamentalsStore, scanner.UniverseResolver, func(), error) {
	if cfg.Database.DSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Println("Using PostgreSQL reference data store")
		return pgstore.NewFundamentalsStore(pool),
			universe.NewStoreResolver(pgstore.NewUniverseStore(pool)),
			pool.Close, nil
	}

	store, err := memory.LoadFundamentalsFile(cfg.Snapshot.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Printf("Loaded fundamentals snapshot from %s", cfg.Snapshot.Path)
	return store, universe.NewStatic(), func() {}, nil
}
