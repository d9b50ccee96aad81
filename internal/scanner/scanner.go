// Package scanner implements the progressive filtering pipeline: resolve the
// ticker universe, bulk-fetch prices, filter cheaply in memory, resolve
// fundamentals for the survivors only, then scan option chains in bounded
// concurrent waves, streaming typed events as work proceeds.
package scanner

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"options-scanner/internal/cache"
	"options-scanner/internal/domain"
	"options-scanner/internal/marketdata"
	"options-scanner/internal/observability"
	"options-scanner/internal/storage"
)

// Default pipeline tuning.
const (
	DefaultWaveSize  = 3
	DefaultPoolSize  = 10
	DefaultWavePause = 200 * time.Millisecond
	DefaultPriceTTL  = 10 * time.Minute
)

// UniverseResolver resolves a universe selection into an ordered ticker list.
type UniverseResolver interface {
	Resolve(ctx context.Context, universe domain.Universe, customTickers string) ([]string, error)
}

// Options configures a Scanner. Provider, Snapshot, Cache and Universes are
// required; zero-valued tuning fields fall back to the defaults above.
type Options struct {
	Provider  marketdata.Provider
	Snapshot  storage.FundamentalsStore
	Cache     *cache.Cache
	Universes UniverseResolver

	WaveSize  int
	PoolSize  int
	WavePause time.Duration
	PriceTTL  time.Duration

	Logger *log.Logger
	Now    func() time.Time
}

// Scanner runs scans. Safe for concurrent use; each Run is independent.
type Scanner struct {
	provider  marketdata.Provider
	snapshot  storage.FundamentalsStore
	cache     *cache.Cache
	universes UniverseResolver

	waveSize  int
	poolSize  int
	wavePause time.Duration
	priceTTL  time.Duration

	logger *log.Logger
	now    func() time.Time

	// pool bounds all concurrent provider work across stages.
	pool chan struct{}
}

// New creates a Scanner from opts.
func New(opts Options) *Scanner {
	s := &Scanner{
		provider:  opts.Provider,
		snapshot:  opts.Snapshot,
		cache:     opts.Cache,
		universes: opts.Universes,
		waveSize:  opts.WaveSize,
		poolSize:  opts.PoolSize,
		wavePause: opts.WavePause,
		priceTTL:  opts.PriceTTL,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.waveSize <= 0 {
		s.waveSize = DefaultWaveSize
	}
	if s.poolSize <= 0 {
		s.poolSize = DefaultPoolSize
	}
	if s.wavePause <= 0 {
		s.wavePause = DefaultWavePause
	}
	if s.priceTTL <= 0 {
		s.priceTTL = DefaultPriceTTL
	}
	if s.logger == nil {
		s.logger = log.New(os.Stdout, "[scanner] ", log.LstdFlags)
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.pool = make(chan struct{}, s.poolSize)
	return s
}

// Run executes one scan and returns the ordered event stream. The channel is
// closed after the terminal event, or early when ctx is cancelled. filters
// must already be validated; Run normalizes defaulted enum fields.
func (s *Scanner) Run(ctx context.Context, filters domain.ScanFilters) <-chan domain.ScanEvent {
	events := make(chan domain.ScanEvent, 16)
	go func() {
		defer close(events)
		s.run(ctx, &filters, events)
	}()
	return events
}

func (s *Scanner) run(ctx context.Context, filters *domain.ScanFilters, events chan<- domain.ScanEvent) {
	filters.Normalize()
	start := s.now()

	observability.RecordScanStarted(string(filters.Universe))
	status := "complete"
	defer func() {
		observability.RecordScanFinished(string(filters.Universe), status, s.now().Sub(start).Seconds())
	}()

	tickers, err := s.universes.Resolve(ctx, filters.Universe, filters.CustomTickers)
	if err != nil || len(tickers) == 0 {
		if err != nil {
			s.logger.Printf("universe resolution failed: %v", err)
		}
		status = "error"
		s.emit(ctx, events, domain.NewErrorEvent("No tickers to scan"))
		return
	}

	if !s.emit(ctx, events, progressEvent(domain.StatusFilteringStocks,
		"Fetching prices for %d tickers...", 5, 0, len(tickers), 0, nil, len(tickers))) {
		status = "cancelled"
		return
	}

	prices, priceTimestamp := s.fetchPrices(ctx, tickers)

	priceFiltered := filterByPrice(tickers, prices, filters)
	observability.DefaultMetrics.TickersFiltered.WithLabelValues("price").
		Add(float64(len(tickers) - len(priceFiltered)))

	if !s.emit(ctx, events, progressEvent(domain.StatusFilteringStocks,
		"Price filter: %d → %d tickers. Fetching P/E ratios...", 10, 0, len(priceFiltered), 0, nil,
		len(tickers), len(priceFiltered))) {
		status = "cancelled"
		return
	}

	stockData := s.resolveFundamentals(ctx, priceFiltered, prices)

	filtered := filterByPE(priceFiltered, stockData, filters)
	observability.DefaultMetrics.TickersFiltered.WithLabelValues("pe").
		Add(float64(len(priceFiltered) - len(filtered)))

	if !s.emit(ctx, events, progressEvent(domain.StatusScanningOptions,
		"Scanning options for %d stocks...", 20, 0, len(filtered), 0, nil, len(filtered))) {
		status = "cancelled"
		return
	}

	if len(filtered) == 0 {
		s.emit(ctx, events, completeEvent(0, s.now().Sub(start), priceTimestamp))
		observability.DefaultMetrics.LastSuccessfulScan.Set(float64(s.now().Unix()))
		return
	}

	today := s.now()
	resultsCount := 0
	scannedCount := 0

	for waveStart := 0; waveStart < len(filtered); waveStart += s.waveSize {
		if waveStart > 0 {
			select {
			case <-ctx.Done():
				status = "cancelled"
				return
			case <-time.After(s.wavePause):
			}
		}

		if ctx.Err() != nil {
			status = "cancelled"
			return
		}

		waveEnd := waveStart + s.waveSize
		if waveEnd > len(filtered) {
			waveEnd = len(filtered)
		}
		wave := filtered[waveStart:waveEnd]

		waveResults := s.scanWave(ctx, wave, stockData, filters, today)

		for i, ticker := range wave {
			scannedCount++
			observability.RecordTickerScanned()

			for _, r := range waveResults[i] {
				resultsCount++
				observability.RecordResultEmitted()
				if !s.emit(ctx, events, domain.NewResultEvent(r)) {
					status = "cancelled"
					return
				}
			}

			progress := 20 + (scannedCount*75)/len(filtered)
			if !s.emit(ctx, events, progressEvent(domain.StatusScanningOptions,
				"Scanning %s...", progress, scannedCount, len(filtered), resultsCount, &ticker, ticker)) {
				status = "cancelled"
				return
			}
		}
	}

	s.emit(ctx, events, completeEvent(resultsCount, s.now().Sub(start), priceTimestamp))
	observability.DefaultMetrics.LastSuccessfulScan.Set(float64(s.now().Unix()))
}

// scanWave fetches option results for one wave of tickers concurrently,
// bounded by the shared pool. Results are indexed by position in wave so the
// emit order stays deterministic. A ticker whose scan fails contributes an
// empty slice.
func (s *Scanner) scanWave(ctx context.Context, wave []string, stockData map[string]*domain.TickerFundamentals, filters *domain.ScanFilters, today time.Time) [][]*domain.OptionResult {
	results := make([][]*domain.OptionResult, len(wave))
	done := make(chan struct{})

	pending := len(wave)
	outcome := make(chan struct {
		idx int
		res []*domain.OptionResult
	}, len(wave))

	for i, ticker := range wave {
		go func(idx int, ticker string) {
			s.pool <- struct{}{}
			defer func() { <-s.pool }()

			res, err := s.scanTicker(ctx, ticker, stockData[ticker], filters, today)
			if err != nil {
				s.logger.Printf("scan %s: %v", ticker, err)
				res = nil
			}
			outcome <- struct {
				idx int
				res []*domain.OptionResult
			}{idx, res}
		}(i, ticker)
	}

	go func() {
		for pending > 0 {
			o := <-outcome
			results[o.idx] = o.res
			pending--
		}
		close(done)
	}()
	<-done

	return results
}

// emit sends one event unless ctx is cancelled. Returns false on
// cancellation; the caller must stop producing.
func (s *Scanner) emit(ctx context.Context, events chan<- domain.ScanEvent, ev domain.ScanEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- ev:
		observability.RecordEventSent(string(ev.Type))
		return true
	}
}

func progressEvent(status domain.ScanStatus, format string, progress, scanned, total, found int, current *string, args ...any) domain.ScanEvent {
	return domain.NewProgressEvent(domain.ScanProgressEvent{
		Status:         status,
		Message:        fmt.Sprintf(format, args...),
		Progress:       progress,
		TickersScanned: scanned,
		TickersTotal:   total,
		ResultsFound:   found,
		CurrentTicker:  current,
	})
}

func completeEvent(total int, duration time.Duration, priceTimestamp int64) domain.ScanEvent {
	return domain.NewCompleteEvent(domain.ScanCompleteEvent{
		TotalResults:        total,
		ScanDurationSeconds: math.Round(duration.Seconds()*100) / 100,
		PriceDataTimestamp:  priceTimestamp,
	})
}
