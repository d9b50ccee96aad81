package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"options-scanner/internal/domain"
	"options-scanner/internal/storage"
)

// FundamentalsStore is an in-memory implementation of
// storage.FundamentalsStore, typically populated from a JSON snapshot file
// generated offline.
type FundamentalsStore struct {
	mu       sync.RWMutex
	byTicker map[string]*domain.FundamentalsRecord
}

// NewFundamentalsStore creates a store holding the given records.
func NewFundamentalsStore(records []*domain.FundamentalsRecord) *FundamentalsStore {
	s := &FundamentalsStore{byTicker: make(map[string]*domain.FundamentalsRecord, len(records))}
	for _, r := range records {
		if r == nil || r.Ticker == "" {
			continue
		}
		rec := *r
		s.byTicker[r.Ticker] = &rec
	}
	return s
}

// snapshotFile mirrors the offline generator's output layout.
type snapshotFile struct {
	GeneratedAt string                   `json:"generated_at"`
	Stocks      map[string]snapshotStock `json:"stocks"`
}

type snapshotStock struct {
	Name              string   `json:"name"`
	Sector            string   `json:"sector"`
	TrailingPE        *float64 `json:"trailing_pe"`
	EarningsTimestamp *int64   `json:"earnings_timestamp"`
	MarketCap         *float64 `json:"market_cap"`
}

// LoadFundamentalsFile reads a JSON snapshot file into a store. A missing
// file is not an error: an empty store is returned so every ticker takes the
// provider fallback path.
func LoadFundamentalsFile(path string) (*FundamentalsStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewFundamentalsStore(nil), nil
		}
		return nil, fmt.Errorf("read fundamentals snapshot: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fundamentals snapshot: %w", err)
	}

	records := make([]*domain.FundamentalsRecord, 0, len(file.Stocks))
	for ticker, s := range file.Stocks {
		name := s.Name
		if name == "" {
			name = ticker
		}
		sector := s.Sector
		if sector == "" {
			sector = "Other"
		}
		records = append(records, &domain.FundamentalsRecord{
			Ticker:            ticker,
			Name:              name,
			Sector:            sector,
			TrailingPE:        s.TrailingPE,
			EarningsTimestamp: s.EarningsTimestamp,
			MarketCap:         s.MarketCap,
		})
	}

	return NewFundamentalsStore(records), nil
}

// Get retrieves the snapshot record for a ticker. Returns ErrNotFound when
// the ticker is absent.
func (s *FundamentalsStore) Get(_ context.Context, ticker string) (*domain.FundamentalsRecord, error) {
	if ticker == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.byTicker[ticker]
	if !exists {
		return nil, storage.ErrNotFound
	}

	rec := *r
	return &rec, nil
}

// GetAll retrieves every snapshot record keyed by ticker.
func (s *FundamentalsStore) GetAll(_ context.Context) (map[string]*domain.FundamentalsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.FundamentalsRecord, len(s.byTicker))
	for t, r := range s.byTicker {
		rec := *r
		out[t] = &rec
	}
	return out, nil
}

var _ storage.FundamentalsStore = (*FundamentalsStore)(nil)
