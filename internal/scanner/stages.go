package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"options-scanner/internal/domain"
	"options-scanner/internal/observability"
	"options-scanner/internal/storage"
)

// priceSnapshot is the cached output of the bulk price stage. Timestamp is
// when the prices were fetched, in milliseconds since the epoch, so clients
// can show data staleness even on cache hits.
type priceSnapshot struct {
	Prices    map[string]*float64
	Timestamp int64
}

// priceCacheKey derives a stable cache key from the ticker set. Order of the
// input does not matter.
func priceCacheKey(tickers []string) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return "prices:" + hex.EncodeToString(sum[:])
}

// fetchPrices resolves last prices for all tickers, serving from cache when a
// scan for the same ticker set ran recently. A provider failure degrades to
// an empty price map; the price filter then removes every ticker and the scan
// completes with zero results.
func (s *Scanner) fetchPrices(ctx context.Context, tickers []string) (map[string]*float64, int64) {
	key := priceCacheKey(tickers)

	if v, ok := s.cache.Get(key); ok {
		if snap, ok := v.(priceSnapshot); ok {
			observability.RecordCacheHit("prices")
			return snap.Prices, snap.Timestamp
		}
	}
	observability.RecordCacheMiss("prices")

	timestamp := s.now().UnixMilli()
	prices, err := s.provider.FetchPrices(ctx, tickers)
	if err != nil {
		s.logger.Printf("bulk price fetch failed: %v", err)
		prices = map[string]*float64{}
	}

	s.cache.Set(key, priceSnapshot{Prices: prices, Timestamp: timestamp}, s.priceTTL)
	return prices, timestamp
}

// filterByPrice keeps tickers whose price is known and within the optional
// [min, max] stock price bounds. Pure function, no remote calls. Input order
// is preserved.
func filterByPrice(tickers []string, prices map[string]*float64, f *domain.ScanFilters) []string {
	filtered := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		price := prices[ticker]
		if price == nil {
			continue
		}
		if f.MinStockPrice != nil && *price < *f.MinStockPrice {
			continue
		}
		if f.MaxStockPrice != nil && *price > *f.MaxStockPrice {
			continue
		}
		filtered = append(filtered, ticker)
	}
	return filtered
}

// resolveFundamentals assembles per-ticker fundamentals for the price-filtered
// set. Tickers present in the static snapshot are served with zero remote
// calls; the rest fall back to one pooled provider lookup each, with
// per-ticker failures defaulting to bare fundamentals rather than failing the
// stage. Snapshot data wins when present.
func (s *Scanner) resolveFundamentals(ctx context.Context, tickers []string, prices map[string]*float64) map[string]*domain.TickerFundamentals {
	result := make(map[string]*domain.TickerFundamentals, len(tickers))
	var uncached []string

	for _, ticker := range tickers {
		rec, err := s.snapshot.Get(ctx, ticker)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.logger.Printf("snapshot lookup %s: %v", ticker, err)
			}
			uncached = append(uncached, ticker)
			continue
		}

		f := &domain.TickerFundamentals{
			Ticker:  ticker,
			Price:   prices[ticker],
			PERatio: rec.TrailingPE,
			Name:    rec.Name,
		}
		if rec.EarningsTimestamp != nil {
			ts := time.Unix(*rec.EarningsTimestamp, 0).UTC()
			f.NextEarnings = &ts
		}
		result[ticker] = f
	}

	if len(uncached) == 0 {
		return result
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ticker := range uncached {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			s.pool <- struct{}{}
			defer func() { <-s.pool }()

			f, err := s.provider.FetchFundamentals(ctx, ticker)
			if err != nil {
				s.logger.Printf("fundamentals fallback %s: %v", ticker, err)
				f = &domain.TickerFundamentals{Ticker: ticker, Name: ticker}
			}
			// The bulk price stage is authoritative for price.
			f.Price = prices[ticker]

			mu.Lock()
			result[ticker] = f
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()

	return result
}

// filterByPE keeps tickers that pass the optional P/E bounds. A ticker with
// unknown P/E passes only when no P/E bound is set. Input order is preserved.
func filterByPE(tickers []string, stockData map[string]*domain.TickerFundamentals, f *domain.ScanFilters) []string {
	filtered := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		data := stockData[ticker]
		if data == nil {
			continue
		}

		if data.PERatio != nil {
			if f.MinPERatio != nil && *data.PERatio < *f.MinPERatio {
				continue
			}
			if f.MaxPERatio != nil && *data.PERatio > *f.MaxPERatio {
				continue
			}
		} else if f.MinPERatio != nil || f.MaxPERatio != nil {
			continue
		}

		filtered = append(filtered, ticker)
	}
	return filtered
}

// scanTicker scans every eligible expiration of one ticker and returns the
// contracts that pass all option-level filters. Expiration-listing failure is
// soft and yields zero results; a chain-fetch failure skips only that
// expiration.
func (s *Scanner) scanTicker(ctx context.Context, ticker string, f *domain.TickerFundamentals, filters *domain.ScanFilters, today time.Time) ([]*domain.OptionResult, error) {
	if f == nil || f.Price == nil {
		return nil, nil
	}
	stockPrice := *f.Price

	expirations, err := s.provider.FetchExpirations(ctx, ticker)
	if err != nil {
		s.logger.Printf("expirations %s: %v", ticker, err)
		return nil, nil
	}

	todayDate := domain.NewDate(today)
	var results []*domain.OptionResult

	for _, exp := range expirations {
		expDate := domain.NewDate(exp)
		dte := int(expDate.Sub(todayDate.Time).Hours() / 24)

		if dte < 0 {
			continue
		}
		// Bounds are checked before the chain fetch so out-of-window
		// expirations cost nothing.
		if filters.MinDTE != nil && dte < *filters.MinDTE {
			continue
		}
		if filters.MaxDTE != nil && dte > *filters.MaxDTE {
			continue
		}

		chain, err := s.provider.FetchChain(ctx, ticker, exp)
		if err != nil {
			s.logger.Printf("chain %s %s: %v", ticker, expDate.Format("2006-01-02"), err)
			continue
		}

		if filters.WantsCalls() {
			for _, row := range chain.Calls {
				if r := evaluateContract(row, ticker, stockPrice, expDate, dte, domain.SideCall, f, filters); r != nil {
					results = append(results, r)
				}
			}
		}
		if filters.WantsPuts() {
			for _, row := range chain.Puts {
				if r := evaluateContract(row, ticker, stockPrice, expDate, dte, domain.SidePut, f, filters); r != nil {
					results = append(results, r)
				}
			}
		}
	}

	return results, nil
}
