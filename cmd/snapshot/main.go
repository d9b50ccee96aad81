// Package main generates the fundamentals snapshot used as reference data by
// the scanner and heatmap: one quote lookup per S&P 500 ticker, merged with
// sector data from the previous snapshot, written as JSON and optionally
// loaded into PostgreSQL. Run it monthly or whenever index composition
// changes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"options-scanner/internal/domain"
	"options-scanner/internal/marketdata"
	"options-scanner/internal/storage/memory"
	"options-scanner/internal/storage/migrations"
	pgstore "options-scanner/internal/storage/postgres"
	"options-scanner/internal/universe"
)

type snapshotStock struct {
	Name              string   `json:"name"`
	Sector            string   `json:"sector"`
	TrailingPE        *float64 `json:"trailing_pe"`
	EarningsTimestamp *int64   `json:"earnings_timestamp"`
	MarketCap         *float64 `json:"market_cap"`
}

type snapshotFile struct {
	GeneratedAt string                   `json:"generated_at"`
	Stocks      map[string]snapshotStock `json:"stocks"`
}

func main() {
	_ = godotenv.Load()

	outPath := flag.String("out", "data/sp500_info.json", "Output snapshot path")
	prevPath := flag.String("prev", "", "Previous snapshot to merge sectors from (defaults to -out)")
	endpoint := flag.String("endpoint", os.Getenv("PROVIDER_ENDPOINT"), "Market data endpoint (empty for default)")
	dsn := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "Optional PostgreSQL DSN to load reference data into")
	workers := flag.Int("workers", 10, "Concurrent quote lookups")

	flag.Parse()

	logger := log.New(os.Stdout, "[snapshot] ", log.LstdFlags)

	if *prevPath == "" {
		*prevPath = *outPath
	}

	prev, err := memory.LoadFundamentalsFile(*prevPath)
	if err != nil {
		logger.Fatalf("Failed to read previous snapshot: %v", err)
	}

	ctx := context.Background()
	client := marketdata.NewYahooClient(*endpoint)

	tickers := universe.SP500Tickers
	logger.Printf("Fetching fundamentals for %d tickers...", len(tickers))

	records := fetchAll(ctx, client, prev, tickers, *workers, logger)
	logger.Printf("Resolved %d of %d tickers", len(records), len(tickers))

	if err := writeSnapshot(*outPath, records); err != nil {
		logger.Fatalf("Failed to write snapshot: %v", err)
	}
	logger.Printf("Wrote %s", *outPath)

	if *dsn != "" {
		if err := loadPostgres(ctx, *dsn, records); err != nil {
			logger.Fatalf("Failed to load postgres: %v", err)
		}
		logger.Println("Loaded reference data into PostgreSQL")
	}
}

// fetchAll resolves fundamentals for every ticker with bounded concurrency.
// Sector carries over from the previous snapshot; a failed lookup keeps the
// previous record entirely when one exists.
func fetchAll(ctx context.Context, client *marketdata.YahooClient, prev *memory.FundamentalsStore, tickers []string, workers int, logger *log.Logger) map[string]*domain.FundamentalsRecord {
	records := make(map[string]*domain.FundamentalsRecord, len(tickers))

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			prevRec, _ := prev.Get(ctx, ticker)

			f, err := client.FetchFundamentals(ctx, ticker)
			if err != nil {
				logger.Printf("fetch %s: %v", ticker, err)
				if prevRec != nil {
					mu.Lock()
					records[ticker] = prevRec
					mu.Unlock()
				}
				return
			}

			rec := &domain.FundamentalsRecord{
				Ticker:     ticker,
				Name:       f.Name,
				Sector:     "Other",
				TrailingPE: f.PERatio,
				MarketCap:  f.MarketCap,
			}
			if f.NextEarnings != nil {
				ts := f.NextEarnings.Unix()
				rec.EarningsTimestamp = &ts
			}
			if prevRec != nil && prevRec.Sector != "" {
				rec.Sector = prevRec.Sector
			}

			mu.Lock()
			records[ticker] = rec
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()

	return records
}

func writeSnapshot(path string, records map[string]*domain.FundamentalsRecord) error {
	file := snapshotFile{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Stocks:      make(map[string]snapshotStock, len(records)),
	}
	for ticker, r := range records {
		file.Stocks[ticker] = snapshotStock{
			Name:              r.Name,
			Sector:            r.Sector,
			TrailingPE:        r.TrailingPE,
			EarningsTimestamp: r.EarningsTimestamp,
			MarketCap:         r.MarketCap,
		}
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// loadPostgres applies migrations and replaces the reference data: every
// fundamentals record upserted, both index universes rewritten.
func loadPostgres(ctx context.Context, dsn string, records map[string]*domain.FundamentalsRecord) error {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := pgstore.NewFundamentalsStore(pool)
	for _, rec := range records {
		if err := store.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("upsert %s: %w", rec.Ticker, err)
		}
	}

	universes := pgstore.NewUniverseStore(pool)
	if err := universes.Replace(ctx, domain.UniverseSP100, universe.SP100Tickers); err != nil {
		return fmt.Errorf("replace sp100: %w", err)
	}
	if err := universes.Replace(ctx, domain.UniverseSP500, universe.SP500Tickers); err != nil {
		return fmt.Errorf("replace sp500: %w", err)
	}
	return nil
}
