package postgres

import (
	"context"
	"fmt"

	"options-scanner/internal/domain"
	"options-scanner/internal/storage"
)

// FundamentalsStore implements storage.FundamentalsStore against the
// ticker_fundamentals table.
type FundamentalsStore struct {
	pool *Pool
}

// NewFundamentalsStore creates a new FundamentalsStore.
func NewFundamentalsStore(pool *Pool) *FundamentalsStore {
	return &FundamentalsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FundamentalsStore = (*FundamentalsStore)(nil)

// Get retrieves the snapshot record for a ticker. Returns ErrNotFound when
// the ticker is absent.
func (s *FundamentalsStore) Get(ctx context.Context, ticker string) (*domain.FundamentalsRecord, error) {
	if ticker == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ticker, name, sector, trailing_pe, earnings_timestamp, market_cap
		FROM ticker_fundamentals
		WHERE ticker = $1
	`

	row := s.pool.QueryRow(ctx, query, ticker)

	var r domain.FundamentalsRecord
	err := row.Scan(&r.Ticker, &r.Name, &r.Sector, &r.TrailingPE, &r.EarningsTimestamp, &r.MarketCap)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get fundamentals for %s: %w", ticker, err)
	}
	return &r, nil
}

// GetAll retrieves every snapshot record keyed by ticker.
func (s *FundamentalsStore) GetAll(ctx context.Context) (map[string]*domain.FundamentalsRecord, error) {
	query := `
		SELECT ticker, name, sector, trailing_pe, earnings_timestamp, market_cap
		FROM ticker_fundamentals
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all fundamentals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.FundamentalsRecord)
	for rows.Next() {
		var r domain.FundamentalsRecord
		if err := rows.Scan(&r.Ticker, &r.Name, &r.Sector, &r.TrailingPE, &r.EarningsTimestamp, &r.MarketCap); err != nil {
			return nil, fmt.Errorf("scan fundamentals row: %w", err)
		}
		out[r.Ticker] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fundamentals rows: %w", err)
	}

	return out, nil
}

// Upsert writes one snapshot record, replacing any existing row for the
// ticker. Used by the offline snapshot refresh job.
func (s *FundamentalsStore) Upsert(ctx context.Context, r *domain.FundamentalsRecord) error {
	if r == nil || r.Ticker == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO ticker_fundamentals (ticker, name, sector, trailing_pe, earnings_timestamp, market_cap)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			trailing_pe = EXCLUDED.trailing_pe,
			earnings_timestamp = EXCLUDED.earnings_timestamp,
			market_cap = EXCLUDED.market_cap
	`

	_, err := s.pool.Exec(ctx, query, r.Ticker, r.Name, r.Sector, r.TrailingPE, r.EarningsTimestamp, r.MarketCap)
	if err != nil {
		return fmt.Errorf("upsert fundamentals for %s: %w", r.Ticker, err)
	}
	return nil
}
