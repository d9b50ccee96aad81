package scanner

import (
	"context"
	"testing"
	"time"

	"options-scanner/internal/cache"
	"options-scanner/internal/domain"
	"options-scanner/internal/marketdata"
	"options-scanner/internal/marketdata/stub"
	"options-scanner/internal/storage/memory"
	"options-scanner/internal/universe"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func newTestScanner(provider *stub.Provider, records []*domain.FundamentalsRecord) *Scanner {
	return New(Options{
		Provider:  provider,
		Snapshot:  memory.NewFundamentalsStore(records),
		Cache:     cache.New(),
		Universes: universe.NewStatic(),
		WavePause: time.Millisecond,
		Now:       func() time.Time { return testNow },
	})
}

func collect(events <-chan domain.ScanEvent) []domain.ScanEvent {
	var out []domain.ScanEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func countByType(events []domain.ScanEvent) map[domain.EventType]int {
	counts := make(map[domain.EventType]int)
	for _, ev := range events {
		counts[ev.Type]++
	}
	return counts
}

func ptr[T any](v T) *T {
	return &v
}

func expIn(days int) time.Time {
	return testNow.Add(time.Duration(days) * 24 * time.Hour)
}

func TestScan_NoFiltersSurfacesPricedContracts(t *testing.T) {
	exp := expIn(20)
	provider := &stub.Provider{
		Prices: map[string]*float64{"AAA": ptr(100.0)},
		Expirations: map[string][]time.Time{
			"AAA": {exp},
		},
		Chains: map[string]*marketdata.Chain{
			stub.ChainKey("AAA", exp): {
				Ticker:     "AAA",
				Expiration: exp,
				Calls: []domain.OptionContractCandidate{
					{Strike: 95, LastPrice: 2.5, Bid: ptr(2.45), Ask: ptr(2.55), Volume: ptr(100), OpenInterest: ptr(50), ImpliedVolatility: ptr(0.28456)},
				},
				Puts: []domain.OptionContractCandidate{
					{Strike: 105, LastPrice: 3.0},
				},
			},
		},
	}

	s := newTestScanner(provider, []*domain.FundamentalsRecord{
		{Ticker: "AAA", Name: "Triple A Corp", Sector: "Technology", TrailingPE: ptr(25.0)},
	})

	filters := domain.ScanFilters{Universe: domain.UniverseCustom, CustomTickers: "AAA"}
	events := collect(s.Run(context.Background(), filters))

	counts := countByType(events)
	if counts[domain.EventError] != 0 {
		t.Fatalf("expected no error events, got %d", counts[domain.EventError])
	}
	if counts[domain.EventResult] != 2 {
		t.Fatalf("expected 2 result events, got %d", counts[domain.EventResult])
	}
	if counts[domain.EventComplete] != 1 {
		t.Fatalf("expected 1 complete event, got %d", counts[domain.EventComplete])
	}

	var call, put *domain.OptionResult
	for _, ev := range events {
		if ev.Type != domain.EventResult {
			continue
		}
		switch ev.Result.OptionType {
		case domain.SideCall:
			call = ev.Result
		case domain.SidePut:
			put = ev.Result
		}
	}

	if call == nil || put == nil {
		t.Fatal("expected one call and one put result")
	}

	// Covered call collateral is stock price; put collateral is strike.
	if call.Collateral != 10000 {
		t.Errorf("expected call collateral 10000, got %f", call.Collateral)
	}
	if put.Collateral != 10500 {
		t.Errorf("expected put collateral 10500, got %f", put.Collateral)
	}

	if call.ROI != 2.5 {
		t.Errorf("expected call ROI 2.5, got %f", call.ROI)
	}
	if call.AnnualizedROI != 45.63 {
		t.Errorf("expected call annualized ROI 45.63, got %f", call.AnnualizedROI)
	}
	if put.ROI != 2.86 {
		t.Errorf("expected put ROI 2.86, got %f", put.ROI)
	}

	if call.Moneyness != domain.ITM {
		t.Errorf("call with stock above strike should be ITM, got %s", call.Moneyness)
	}
	if put.Moneyness != domain.ITM {
		t.Errorf("put with stock below strike should be ITM, got %s", put.Moneyness)
	}

	if call.ImpliedVolatility == nil || *call.ImpliedVolatility != 0.2846 {
		t.Errorf("expected IV rounded to 0.2846, got %v", call.ImpliedVolatility)
	}
	if call.PERatio == nil || *call.PERatio != 25.0 {
		t.Errorf("expected P/E 25 from snapshot, got %v", call.PERatio)
	}
	if call.DTE != 20 {
		t.Errorf("expected DTE 20, got %d", call.DTE)
	}

	last := events[len(events)-1]
	if last.Type != domain.EventComplete {
		t.Fatalf("expected last event to be complete, got %s", last.Type)
	}
	if last.Complete.TotalResults != 2 {
		t.Errorf("expected total_results 2, got %d", last.Complete.TotalResults)
	}
	if last.Complete.PriceDataTimestamp != testNow.UnixMilli() {
		t.Errorf("expected price timestamp %d, got %d", testNow.UnixMilli(), last.Complete.PriceDataTimestamp)
	}
}

func TestScan_PriceFilterShedsBeforeExpensiveStages(t *testing.T) {
	provider := &stub.Provider{
		Prices: map[string]*float64{
			"AAA": ptr(100.0),
			"BBB": ptr(250.0),
		},
		Fundamentals: map[string]*domain.TickerFundamentals{
			"AAA": {Ticker: "AAA", Name: "Triple A Corp"},
			"BBB": {Ticker: "BBB", Name: "Double B Inc"},
		},
		Expirations: map[string][]time.Time{
			"AAA": {expIn(20)},
			"BBB": {},
		},
	}

	s := newTestScanner(provider, nil)

	filters := domain.ScanFilters{
		Universe:      domain.UniverseCustom,
		CustomTickers: "AAA,BBB",
		MinStockPrice: ptr(200.0),
	}
	events := collect(s.Run(context.Background(), filters))

	counts := countByType(events)
	if counts[domain.EventComplete] != 1 || counts[domain.EventError] != 0 {
		t.Fatalf("expected clean completion, got %v", counts)
	}

	if len(provider.FundamentalsFetched) != 1 || provider.FundamentalsFetched[0] != "BBB" {
		t.Errorf("expected fundamentals fetched only for BBB, got %v", provider.FundamentalsFetched)
	}
	if provider.ExpirationCalls != 1 {
		t.Errorf("expected 1 expiration call (BBB only), got %d", provider.ExpirationCalls)
	}
}

func TestScan_ChainFailureForOneExpirationRecovers(t *testing.T) {
	okExp := expIn(20)
	badExp := expIn(10)
	provider := &stub.Provider{
		Prices: map[string]*float64{"AAA": ptr(100.0)},
		Expirations: map[string][]time.Time{
			"AAA": {badExp, okExp},
		},
		Chains: map[string]*marketdata.Chain{
			// badExp deliberately absent so its fetch fails.
			stub.ChainKey("AAA", okExp): {
				Ticker:     "AAA",
				Expiration: okExp,
				Puts: []domain.OptionContractCandidate{
					{Strike: 95, LastPrice: 1.5},
				},
			},
		},
	}

	s := newTestScanner(provider, []*domain.FundamentalsRecord{
		{Ticker: "AAA", Name: "Triple A Corp"},
	})

	filters := domain.ScanFilters{Universe: domain.UniverseCustom, CustomTickers: "AAA"}
	events := collect(s.Run(context.Background(), filters))

	counts := countByType(events)
	if counts[domain.EventError] != 0 {
		t.Fatalf("chain failure must not surface an error event, got %d", counts[domain.EventError])
	}
	if counts[domain.EventResult] != 1 {
		t.Fatalf("expected 1 result from the surviving expiration, got %d", counts[domain.EventResult])
	}
	if counts[domain.EventComplete] != 1 {
		t.Fatalf("expected 1 complete event, got %d", counts[domain.EventComplete])
	}
}

func TestScan_EmptyUniverseEmitsSingleError(t *testing.T) {
	provider := &stub.Provider{}
	s := newTestScanner(provider, nil)

	filters := domain.ScanFilters{Universe: domain.UniverseCustom, CustomTickers: " , ,"}
	events := collect(s.Run(context.Background(), filters))

	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(events))
	}
	if events[0].Type != domain.EventError {
		t.Fatalf("expected error event, got %s", events[0].Type)
	}
	if events[0].Error.Message != "No tickers to scan" {
		t.Errorf("unexpected error message %q", events[0].Error.Message)
	}
}

func TestScan_EmptyFilteredSetCompletesWithZero(t *testing.T) {
	provider := &stub.Provider{
		Prices: map[string]*float64{"AAA": ptr(100.0)},
	}
	s := newTestScanner(provider, nil)

	filters := domain.ScanFilters{
		Universe:      domain.UniverseCustom,
		CustomTickers: "AAA",
		MinStockPrice: ptr(1000.0),
	}
	events := collect(s.Run(context.Background(), filters))

	counts := countByType(events)
	if counts[domain.EventError] != 0 {
		t.Fatalf("empty filtered set is not an error, got %d error events", counts[domain.EventError])
	}
	if counts[domain.EventComplete] != 1 {
		t.Fatalf("expected 1 complete event, got %d", counts[domain.EventComplete])
	}

	last := events[len(events)-1]
	if last.Complete.TotalResults != 0 {
		t.Errorf("expected 0 results, got %d", last.Complete.TotalResults)
	}

	if provider.ExpirationCalls != 0 || provider.FundamentalsCalls != 0 {
		t.Errorf("filtered-out ticker must not trigger downstream calls, got exp=%d fund=%d",
			provider.ExpirationCalls, provider.FundamentalsCalls)
	}
}

func TestScan_ProgressMonotonic(t *testing.T) {
	tickers := "T1,T2,T3,T4,T5,T6,T7"
	provider := &stub.Provider{
		Prices:      map[string]*float64{},
		Expirations: map[string][]time.Time{},
	}
	var records []*domain.FundamentalsRecord
	for _, tk := range []string{"T1", "T2", "T3", "T4", "T5", "T6", "T7"} {
		provider.Prices[tk] = ptr(50.0)
		provider.Expirations[tk] = []time.Time{}
		records = append(records, &domain.FundamentalsRecord{Ticker: tk, Name: tk})
	}

	s := newTestScanner(provider, records)

	filters := domain.ScanFilters{Universe: domain.UniverseCustom, CustomTickers: tickers}
	events := collect(s.Run(context.Background(), filters))

	prev := -1
	lastProgress := -1
	for _, ev := range events {
		if ev.Type != domain.EventProgress {
			continue
		}
		if ev.Progress.Progress < prev {
			t.Fatalf("progress regressed from %d to %d", prev, ev.Progress.Progress)
		}
		prev = ev.Progress.Progress
		lastProgress = ev.Progress.Progress
	}

	if lastProgress < 95 {
		t.Errorf("final progress before complete must be >= 95, got %d", lastProgress)
	}
	if events[len(events)-1].Type != domain.EventComplete {
		t.Errorf("expected complete as terminal event, got %s", events[len(events)-1].Type)
	}
}

func TestScan_DTEBoundaries(t *testing.T) {
	exps := []time.Time{expIn(9), expIn(10), expIn(30), expIn(31)}
	chains := make(map[string]*marketdata.Chain)
	for _, e := range exps {
		chains[stub.ChainKey("AAA", e)] = &marketdata.Chain{
			Ticker:     "AAA",
			Expiration: e,
			Puts: []domain.OptionContractCandidate{
				{Strike: 95, LastPrice: 1.0},
			},
		}
	}

	provider := &stub.Provider{
		Prices:      map[string]*float64{"AAA": ptr(100.0)},
		Expirations: map[string][]time.Time{"AAA": exps},
		Chains:      chains,
	}

	s := newTestScanner(provider, []*domain.FundamentalsRecord{{Ticker: "AAA", Name: "Triple A Corp"}})

	filters := domain.ScanFilters{
		Universe:      domain.UniverseCustom,
		CustomTickers: "AAA",
		MinDTE:        ptr(10),
		MaxDTE:        ptr(30),
	}
	events := collect(s.Run(context.Background(), filters))

	var dtes []int
	for _, ev := range events {
		if ev.Type == domain.EventResult {
			dtes = append(dtes, ev.Result.DTE)
		}
	}

	if len(dtes) != 2 || dtes[0] != 10 || dtes[1] != 30 {
		t.Errorf("expected results at dte 10 and 30 only, got %v", dtes)
	}

	// Out-of-window expirations must be skipped before the chain fetch.
	if provider.ChainCalls != 2 {
		t.Errorf("expected 2 chain calls, got %d", provider.ChainCalls)
	}
}

func TestScan_PriceCacheReusedAcrossScans(t *testing.T) {
	provider := &stub.Provider{
		Prices:      map[string]*float64{"AAA": ptr(100.0)},
		Expirations: map[string][]time.Time{"AAA": {}},
	}
	s := newTestScanner(provider, []*domain.FundamentalsRecord{{Ticker: "AAA", Name: "Triple A Corp"}})

	filters := domain.ScanFilters{Universe: domain.UniverseCustom, CustomTickers: "AAA"}
	collect(s.Run(context.Background(), filters))
	collect(s.Run(context.Background(), filters))

	if provider.PriceCalls != 1 {
		t.Errorf("expected second scan to reuse cached prices, got %d price calls", provider.PriceCalls)
	}
}

func TestScan_PriceFetchFailureCompletesEmpty(t *testing.T) {
	provider := &stub.Provider{
		FetchPricesFunc: func(ctx context.Context, tickers []string) (map[string]*float64, error) {
			return nil, context.DeadlineExceeded
		},
	}
	s := newTestScanner(provider, nil)

	filters := domain.ScanFilters{Universe: domain.UniverseCustom, CustomTickers: "AAA,BBB"}
	events := collect(s.Run(context.Background(), filters))

	counts := countByType(events)
	if counts[domain.EventError] != 0 {
		t.Fatalf("price fetch failure must degrade, not error, got %v", counts)
	}
	if counts[domain.EventComplete] != 1 {
		t.Fatalf("expected complete event, got %v", counts)
	}
	if events[len(events)-1].Complete.TotalResults != 0 {
		t.Errorf("expected 0 results after degraded price fetch")
	}
}

func TestScan_FundamentalsFallbackFailureDefaults(t *testing.T) {
	exp := expIn(15)
	provider := &stub.Provider{
		Prices: map[string]*float64{"AAA": ptr(100.0)},
		FetchFundamentalsFunc: func(ctx context.Context, ticker string) (*domain.TickerFundamentals, error) {
			return nil, context.DeadlineExceeded
		},
		Expirations: map[string][]time.Time{"AAA": {exp}},
		Chains: map[string]*marketdata.Chain{
			stub.ChainKey("AAA", exp): {
				Ticker: "AAA", Expiration: exp,
				Puts: []domain.OptionContractCandidate{{Strike: 95, LastPrice: 1.0}},
			},
		},
	}

	s := newTestScanner(provider, nil)

	filters := domain.ScanFilters{Universe: domain.UniverseCustom, CustomTickers: "AAA"}
	events := collect(s.Run(context.Background(), filters))

	counts := countByType(events)
	if counts[domain.EventResult] != 1 {
		t.Fatalf("ticker with failed fundamentals should still scan, got %v", counts)
	}

	for _, ev := range events {
		if ev.Type == domain.EventResult && ev.Result.PERatio != nil {
			t.Errorf("expected nil P/E after fallback failure, got %v", *ev.Result.PERatio)
		}
	}
}

func TestScan_PEFilterSkipsUnknownPE(t *testing.T) {
	provider := &stub.Provider{
		Prices: map[string]*float64{
			"AAA": ptr(100.0),
			"BBB": ptr(100.0),
		},
		Expirations: map[string][]time.Time{
			"AAA": {},
			"BBB": {},
		},
	}

	// AAA has a P/E in range, BBB has none.
	s := newTestScanner(provider, []*domain.FundamentalsRecord{
		{Ticker: "AAA", Name: "Triple A Corp", TrailingPE: ptr(20.0)},
		{Ticker: "BBB", Name: "Double B Inc"},
	})

	filters := domain.ScanFilters{
		Universe:      domain.UniverseCustom,
		CustomTickers: "AAA,BBB",
		MaxPERatio:    ptr(30.0),
	}
	events := collect(s.Run(context.Background(), filters))

	var scanned int
	for _, ev := range events {
		if ev.Type == domain.EventProgress && ev.Progress.Status == domain.StatusScanningOptions && ev.Progress.TickersTotal > 0 {
			scanned = ev.Progress.TickersTotal
		}
	}

	if scanned != 1 {
		t.Errorf("ticker without P/E must be excluded when a P/E bound is set, got %d survivors", scanned)
	}
}

func TestScan_CancelledContextStopsStream(t *testing.T) {
	provider := &stub.Provider{
		Prices: map[string]*float64{"AAA": ptr(100.0)},
	}
	s := newTestScanner(provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	filters := domain.ScanFilters{Universe: domain.UniverseCustom, CustomTickers: "AAA"}
	events := collect(s.Run(ctx, filters))

	for _, ev := range events {
		if ev.Type == domain.EventComplete {
			t.Fatal("cancelled scan must not emit complete")
		}
	}
}

func TestPriceCacheKey_OrderIndependent(t *testing.T) {
	a := priceCacheKey([]string{"AAPL", "MSFT", "XOM"})
	b := priceCacheKey([]string{"XOM", "AAPL", "MSFT"})
	if a != b {
		t.Errorf("cache key must not depend on ticker order: %s != %s", a, b)
	}

	c := priceCacheKey([]string{"AAPL", "MSFT"})
	if a == c {
		t.Error("different ticker sets must produce different keys")
	}
}
