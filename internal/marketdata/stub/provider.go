// Package stub provides an in-memory Provider implementation for tests
// and offline development.
package stub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"options-scanner/internal/domain"
	"options-scanner/internal/marketdata"
)

// Provider is a map-backed marketdata.Provider. Populate the exported maps
// before use; zero-value maps behave as an empty market. All methods are safe
// for concurrent use. Call counters record how often each method ran so tests
// can assert on fetch behavior.
type Provider struct {
	mu sync.Mutex

	// Prices maps ticker to last price. A ticker present with a nil value
	// models a symbol the provider knows but has no price for.
	Prices map[string]*float64

	// Fundamentals maps ticker to its quote fundamentals.
	Fundamentals map[string]*domain.TickerFundamentals

	// Expirations maps ticker to its option expiration dates.
	Expirations map[string][]time.Time

	// Chains maps "TICKER|YYYY-MM-DD" to the chain for that expiration.
	Chains map[string]*marketdata.Chain

	// Changes maps "TICKER|range" to the period price change.
	Changes map[string]PeriodChange

	// Err, when set, is returned by every call.
	Err error

	// FetchPricesFunc, when set, replaces the map lookup entirely.
	FetchPricesFunc func(ctx context.Context, tickers []string) (map[string]*float64, error)

	// FetchFundamentalsFunc, when set, replaces the map lookup entirely.
	FetchFundamentalsFunc func(ctx context.Context, ticker string) (*domain.TickerFundamentals, error)

	// Counters.
	PriceCalls        int
	FundamentalsCalls int
	ExpirationCalls   int
	ChainCalls        int
	ChangeCalls       int

	// FundamentalsFetched records which tickers had fundamentals requested,
	// in call order.
	FundamentalsFetched []string
}

// PeriodChange mirrors marketdata.PriceChange for stub configuration.
type PeriodChange struct {
	Price     float64
	ChangePct float64
}

var _ marketdata.Provider = (*Provider)(nil)

// ChainKey builds the Chains map key for a (ticker, expiration) pair.
func ChainKey(ticker string, expiration time.Time) string {
	return ticker + "|" + expiration.Format("2006-01-02")
}

// ChangeKey builds the Changes map key for a (ticker, range) pair.
func ChangeKey(ticker, historyRange string) string {
	return ticker + "|" + historyRange
}

func (p *Provider) FetchPrices(ctx context.Context, tickers []string) (map[string]*float64, error) {
	p.mu.Lock()
	p.PriceCalls++
	fn := p.FetchPricesFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, tickers)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}

	out := make(map[string]*float64, len(tickers))
	for _, t := range tickers {
		out[t] = p.Prices[t]
	}
	return out, nil
}

func (p *Provider) FetchFundamentals(ctx context.Context, ticker string) (*domain.TickerFundamentals, error) {
	p.mu.Lock()
	p.FundamentalsCalls++
	p.FundamentalsFetched = append(p.FundamentalsFetched, ticker)
	fn := p.FetchFundamentalsFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, ticker)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}

	f, ok := p.Fundamentals[ticker]
	if !ok {
		return nil, fmt.Errorf("no fundamentals for %s", ticker)
	}
	cp := *f
	return &cp, nil
}

func (p *Provider) FetchExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ExpirationCalls++
	if p.Err != nil {
		return nil, p.Err
	}

	exps, ok := p.Expirations[ticker]
	if !ok {
		return nil, fmt.Errorf("no option data for %s", ticker)
	}
	return append([]time.Time(nil), exps...), nil
}

func (p *Provider) FetchChain(ctx context.Context, ticker string, expiration time.Time) (*marketdata.Chain, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ChainCalls++
	if p.Err != nil {
		return nil, p.Err
	}

	chain, ok := p.Chains[ChainKey(ticker, expiration)]
	if !ok {
		return nil, fmt.Errorf("no chain data for %s at %s", ticker, expiration.Format("2006-01-02"))
	}
	return chain, nil
}

func (p *Provider) FetchChanges(ctx context.Context, tickers []string, historyRange string) (map[string]marketdata.PriceChange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ChangeCalls++
	if p.Err != nil {
		return nil, p.Err
	}

	out := make(map[string]marketdata.PriceChange)
	for _, t := range tickers {
		if c, ok := p.Changes[ChangeKey(t, historyRange)]; ok {
			out[t] = marketdata.PriceChange{Price: c.Price, ChangePct: c.ChangePct}
		}
	}
	return out, nil
}
