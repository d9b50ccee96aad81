// Package marketdata abstracts the remote market-data provider: bulk
// prices, per-ticker fundamentals, option expirations and chains, and
// period price changes. Every call is fallible and latency-variable;
// callers decide how failures degrade.
package marketdata

import (
	"context"
	"time"

	"options-scanner/internal/domain"
)

// Chain is one ticker's option chain for a single expiration.
type Chain struct {
	Ticker     string
	Expiration time.Time
	Calls      []domain.OptionContractCandidate
	Puts       []domain.OptionContractCandidate
}

// PriceChange is a ticker's price and percentage change over a period.
type PriceChange struct {
	Price     float64
	ChangePct float64
}

// Provider is the remote market-data capability.
type Provider interface {
	// FetchPrices resolves last prices for every ticker in one bulk call.
	// The returned map has an entry for each requested ticker; the value is
	// nil when the provider has no data for that symbol.
	FetchPrices(ctx context.Context, tickers []string) (map[string]*float64, error)

	// FetchFundamentals resolves one ticker's display name, trailing P/E
	// and next earnings date.
	FetchFundamentals(ctx context.Context, ticker string) (*domain.TickerFundamentals, error)

	// FetchExpirations lists a ticker's option expiration dates.
	FetchExpirations(ctx context.Context, ticker string) ([]time.Time, error)

	// FetchChain retrieves the option chain for one (ticker, expiration).
	FetchChain(ctx context.Context, ticker string, expiration time.Time) (*Chain, error)

	// FetchChanges resolves price and percentage change over a history
	// range (e.g. "2d", "7d", "1mo", "3mo", "ytd") for many tickers.
	// Tickers without enough history are omitted from the result.
	FetchChanges(ctx context.Context, tickers []string, historyRange string) (map[string]PriceChange, error)
}
