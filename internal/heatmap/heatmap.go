// Package heatmap builds the sector-grouped market heatmap from period price
// changes and the static fundamentals snapshot.
package heatmap

import (
	"context"
	"log"
	"math"
	"os"
	"sort"
	"time"

	"options-scanner/internal/cache"
	"options-scanner/internal/domain"
	"options-scanner/internal/marketdata"
	"options-scanner/internal/storage"
	"options-scanner/internal/universe"
)

// DefaultTTL matches the frontend's heatmap refresh interval.
const DefaultTTL = 2 * time.Minute

// periodRanges maps a display period to the provider history range needed to
// compute it. One day of change needs two days of closes.
var periodRanges = map[string]string{
	"1d":  "2d",
	"1w":  "7d",
	"1m":  "1mo",
	"3m":  "3mo",
	"ytd": "ytd",
}

// Periods returns the selectable heatmap periods.
func Periods() []string {
	return []string{"1d", "1w", "1m", "3m", "ytd"}
}

// Options configures a Service.
type Options struct {
	Provider marketdata.Provider
	Snapshot storage.FundamentalsStore
	Cache    *cache.Cache
	TTL      time.Duration
	Logger   *log.Logger
	Now      func() time.Time
}

// Service computes and caches heatmap responses.
type Service struct {
	provider marketdata.Provider
	snapshot storage.FundamentalsStore
	cache    *cache.Cache
	ttl      time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// New creates a heatmap service.
func New(opts Options) *Service {
	s := &Service{
		provider: opts.Provider,
		snapshot: opts.Snapshot,
		cache:    opts.Cache,
		ttl:      opts.TTL,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.logger == nil {
		s.logger = log.New(os.Stdout, "[heatmap] ", log.LstdFlags)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Get returns the S&P 500 heatmap for a period, serving from cache when a
// recent response exists. An unknown period falls back to one-day change.
func (s *Service) Get(ctx context.Context, period string) (*domain.HeatmapResponse, error) {
	key := "heatmap:sp500:" + period
	if v, ok := s.cache.Get(key); ok {
		if resp, ok := v.(*domain.HeatmapResponse); ok {
			return resp, nil
		}
	}

	historyRange, ok := periodRanges[period]
	if !ok {
		historyRange = "2d"
	}

	changes, err := s.provider.FetchChanges(ctx, universe.SP500Tickers, historyRange)
	if err != nil {
		return nil, err
	}

	now := s.now()
	resp := &domain.HeatmapResponse{
		Sectors:     []domain.HeatmapSector{},
		Period:      period,
		Universe:    "sp500",
		GeneratedAt: now.Format(time.RFC3339),
		CachedAt:    now.UnixMilli(),
	}

	if len(changes) == 0 {
		return resp, nil
	}

	info, err := s.snapshot.GetAll(ctx)
	if err != nil {
		s.logger.Printf("snapshot read failed: %v", err)
		info = map[string]*domain.FundamentalsRecord{}
	}

	bySector := make(map[string][]domain.HeatmapStock)
	for _, ticker := range universe.SP500Tickers {
		change, ok := changes[ticker]
		if !ok {
			continue
		}

		sector := "Other"
		name := ticker
		var marketCap *float64
		if rec := info[ticker]; rec != nil {
			if rec.Sector != "" {
				sector = rec.Sector
			}
			if rec.Name != "" {
				name = rec.Name
			}
			marketCap = rec.MarketCap
		}

		bySector[sector] = append(bySector[sector], domain.HeatmapStock{
			Ticker:    ticker,
			Name:      name,
			Price:     round2(change.Price),
			Change:    round2(change.ChangePct),
			MarketCap: marketCap,
		})
	}

	for name, stocks := range bySector {
		// Largest companies first within a sector.
		sort.SliceStable(stocks, func(i, j int) bool {
			return capOf(stocks[i]) > capOf(stocks[j])
		})

		var sum float64
		for _, st := range stocks {
			sum += st.Change
		}

		resp.Sectors = append(resp.Sectors, domain.HeatmapSector{
			Name:   name,
			Change: round2(sum / float64(len(stocks))),
			Stocks: stocks,
		})
	}

	// Heaviest sectors first.
	sort.SliceStable(resp.Sectors, func(i, j int) bool {
		return sectorCap(resp.Sectors[i]) > sectorCap(resp.Sectors[j])
	})

	s.cache.Set(key, resp, s.ttl)
	return resp, nil
}

func capOf(s domain.HeatmapStock) float64 {
	if s.MarketCap == nil {
		return 0
	}
	return *s.MarketCap
}

func sectorCap(s domain.HeatmapSector) float64 {
	var total float64
	for _, st := range s.Stocks {
		total += capOf(st)
	}
	return total
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
