package postgres

import (
	"context"
	"fmt"

	"options-scanner/internal/domain"
	"options-scanner/internal/storage"
)

// UniverseStore implements storage.UniverseStore against the
// ticker_universes table.
type UniverseStore struct {
	pool *Pool
}

// NewUniverseStore creates a new UniverseStore.
func NewUniverseStore(pool *Pool) *UniverseStore {
	return &UniverseStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UniverseStore = (*UniverseStore)(nil)

// Tickers retrieves the member tickers of a universe in stored order.
func (s *UniverseStore) Tickers(ctx context.Context, u domain.Universe) ([]string, error) {
	query := `
		SELECT ticker
		FROM ticker_universes
		WHERE universe = $1
		ORDER BY position ASC
	`

	rows, err := s.pool.Query(ctx, query, string(u))
	if err != nil {
		return nil, fmt.Errorf("get universe %s: %w", u, err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan universe row: %w", err)
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate universe rows: %w", err)
	}

	if len(tickers) == 0 {
		return nil, storage.ErrNotFound
	}
	return tickers, nil
}

// Replace rewrites a universe's membership in one transaction. Used by the
// offline index refresh job.
func (s *UniverseStore) Replace(ctx context.Context, u domain.Universe, tickers []string) error {
	if u == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin universe replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ticker_universes WHERE universe = $1`, string(u)); err != nil {
		return fmt.Errorf("clear universe %s: %w", u, err)
	}

	for i, t := range tickers {
		_, err := tx.Exec(ctx,
			`INSERT INTO ticker_universes (universe, ticker, position) VALUES ($1, $2, $3)`,
			string(u), t, i)
		if err != nil {
			return fmt.Errorf("insert universe member %s/%s: %w", u, t, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit universe replace: %w", err)
	}
	return nil
}
