package storage

import (
	"context"

	"options-scanner/internal/domain"
)

// FundamentalsStore provides read access to the per-ticker fundamentals
// snapshot (name, sector, trailing P/E, next earnings timestamp, market cap).
// The snapshot is reference data: loaded or connected once at process start
// and treated as read-only for the process lifetime.
type FundamentalsStore interface {
	// Get retrieves the snapshot record for a ticker. Returns ErrNotFound
	// when the ticker is absent from the snapshot.
	Get(ctx context.Context, ticker string) (*domain.FundamentalsRecord, error)

	// GetAll retrieves every snapshot record keyed by ticker.
	GetAll(ctx context.Context) (map[string]*domain.FundamentalsRecord, error)
}

// UniverseStore provides read access to the ticker-universe table.
type UniverseStore interface {
	// Tickers retrieves the member tickers of a universe in stored order.
	// Returns ErrNotFound when the universe is unknown.
	Tickers(ctx context.Context, u domain.Universe) ([]string, error)
}
