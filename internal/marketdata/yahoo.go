package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"options-scanner/internal/domain"
	"options-scanner/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// DefaultEndpoint is the public quote API host.
	DefaultEndpoint = "https://query1.finance.yahoo.com"
)

// YahooClient implements Provider against the Yahoo Finance quote API.
type YahooClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures YahooClient.
type ClientOption func(*YahooClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *YahooClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *YahooClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *YahooClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *YahooClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *YahooClient) {
		c.client = client
	}
}

// NewYahooClient creates a new market-data client. An empty endpoint uses
// the public API host; tests point it at an httptest server.
func NewYahooClient(endpoint string, opts ...ClientOption) *YahooClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &YahooClient{
		endpoint:    strings.TrimRight(endpoint, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Provider = (*YahooClient)(nil)

// get performs a GET with retries and exponential backoff, decoding the JSON
// body into result.
func (c *YahooClient) get(ctx context.Context, method, path string, query url.Values, result interface{}) error {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	start := time.Now()
	err := c.doGet(ctx, u, result)
	observability.RecordProviderCall(method, time.Since(start).Seconds(), err)
	return err
}

func (c *YahooClient) doGet(ctx context.Context, u string, result interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "options-scanner/1.0")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		if result != nil {
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// quoteResponse is the raw /v7/finance/quote envelope.
type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol             string   `json:"symbol"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	ShortName          *string  `json:"shortName"`
	TrailingPE         *float64 `json:"trailingPE"`
	EarningsTimestamp  *int64   `json:"earningsTimestamp"`
	MarketCap          *float64 `json:"marketCap"`
}

// FetchPrices resolves last prices for every ticker in one bulk call.
func (c *YahooClient) FetchPrices(ctx context.Context, tickers []string) (map[string]*float64, error) {
	out := make(map[string]*float64, len(tickers))
	for _, t := range tickers {
		out[t] = nil
	}
	if len(tickers) == 0 {
		return out, nil
	}

	query := url.Values{
		"symbols": {strings.Join(tickers, ",")},
		"fields":  {"symbol,regularMarketPrice"},
	}

	var resp quoteResponse
	if err := c.get(ctx, "prices", "/v7/finance/quote", query, &resp); err != nil {
		return nil, err
	}

	for _, r := range resp.QuoteResponse.Result {
		if _, requested := out[r.Symbol]; requested {
			out[r.Symbol] = r.RegularMarketPrice
		}
	}

	return out, nil
}

// FetchFundamentals resolves one ticker's name, trailing P/E and next
// earnings date.
func (c *YahooClient) FetchFundamentals(ctx context.Context, ticker string) (*domain.TickerFundamentals, error) {
	query := url.Values{
		"symbols": {ticker},
		"fields":  {"symbol,regularMarketPrice,shortName,trailingPE,earningsTimestamp,marketCap"},
	}

	var resp quoteResponse
	if err := c.get(ctx, "fundamentals", "/v7/finance/quote", query, &resp); err != nil {
		return nil, err
	}

	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data for %s", ticker)
	}

	r := resp.QuoteResponse.Result[0]
	f := &domain.TickerFundamentals{
		Ticker:    ticker,
		Price:     r.RegularMarketPrice,
		PERatio:   r.TrailingPE,
		Name:      ticker,
		MarketCap: r.MarketCap,
	}
	if r.ShortName != nil && *r.ShortName != "" {
		f.Name = *r.ShortName
	}
	if r.EarningsTimestamp != nil {
		ts := time.Unix(*r.EarningsTimestamp, 0).UTC()
		f.NextEarnings = &ts
	}
	return f, nil
}

// optionChainResponse is the raw /v7/finance/options envelope.
type optionChainResponse struct {
	OptionChain struct {
		Result []struct {
			ExpirationDates []int64 `json:"expirationDates"`
			Options         []struct {
				Calls []chainRow `json:"calls"`
				Puts  []chainRow `json:"puts"`
			} `json:"options"`
		} `json:"result"`
	} `json:"optionChain"`
}

type chainRow struct {
	Strike            float64  `json:"strike"`
	LastPrice         float64  `json:"lastPrice"`
	Bid               *float64 `json:"bid"`
	Ask               *float64 `json:"ask"`
	Volume            *int     `json:"volume"`
	OpenInterest      *int     `json:"openInterest"`
	ImpliedVolatility *float64 `json:"impliedVolatility"`
}

// FetchExpirations lists a ticker's option expiration dates.
func (c *YahooClient) FetchExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	var resp optionChainResponse
	if err := c.get(ctx, "expirations", "/v7/finance/options/"+url.PathEscape(ticker), nil, &resp); err != nil {
		return nil, err
	}

	if len(resp.OptionChain.Result) == 0 {
		return nil, fmt.Errorf("no option data for %s", ticker)
	}

	dates := resp.OptionChain.Result[0].ExpirationDates
	out := make([]time.Time, 0, len(dates))
	for _, ts := range dates {
		out = append(out, time.Unix(ts, 0).UTC())
	}
	return out, nil
}

// FetchChain retrieves the option chain for one (ticker, expiration).
func (c *YahooClient) FetchChain(ctx context.Context, ticker string, expiration time.Time) (*Chain, error) {
	query := url.Values{
		"date": {strconv.FormatInt(expiration.Unix(), 10)},
	}

	var resp optionChainResponse
	if err := c.get(ctx, "chain", "/v7/finance/options/"+url.PathEscape(ticker), query, &resp); err != nil {
		return nil, err
	}

	if len(resp.OptionChain.Result) == 0 || len(resp.OptionChain.Result[0].Options) == 0 {
		return nil, fmt.Errorf("no chain data for %s at %s", ticker, expiration.Format("2006-01-02"))
	}

	raw := resp.OptionChain.Result[0].Options[0]
	chain := &Chain{
		Ticker:     ticker,
		Expiration: expiration,
		Calls:      make([]domain.OptionContractCandidate, 0, len(raw.Calls)),
		Puts:       make([]domain.OptionContractCandidate, 0, len(raw.Puts)),
	}
	for _, r := range raw.Calls {
		chain.Calls = append(chain.Calls, rowToCandidate(r))
	}
	for _, r := range raw.Puts {
		chain.Puts = append(chain.Puts, rowToCandidate(r))
	}
	return chain, nil
}

func rowToCandidate(r chainRow) domain.OptionContractCandidate {
	return domain.OptionContractCandidate{
		Strike:            r.Strike,
		LastPrice:         r.LastPrice,
		Bid:               r.Bid,
		Ask:               r.Ask,
		Volume:            r.Volume,
		OpenInterest:      r.OpenInterest,
		ImpliedVolatility: r.ImpliedVolatility,
	}
}

// sparkResponse is the raw /v8/finance/spark envelope.
type sparkResponse struct {
	Spark struct {
		Result []struct {
			Symbol   string `json:"symbol"`
			Response []struct {
				Indicators struct {
					Quote []struct {
						Close []*float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"response"`
		} `json:"result"`
	} `json:"spark"`
}

// FetchChanges resolves price and percentage change over a history range.
func (c *YahooClient) FetchChanges(ctx context.Context, tickers []string, historyRange string) (map[string]PriceChange, error) {
	out := make(map[string]PriceChange)
	if len(tickers) == 0 {
		return out, nil
	}

	query := url.Values{
		"symbols":  {strings.Join(tickers, ",")},
		"range":    {historyRange},
		"interval": {"1d"},
	}

	var resp sparkResponse
	if err := c.get(ctx, "changes", "/v8/finance/spark", query, &resp); err != nil {
		return nil, err
	}

	for _, r := range resp.Spark.Result {
		if len(r.Response) == 0 || len(r.Response[0].Indicators.Quote) == 0 {
			continue
		}

		var closes []float64
		for _, v := range r.Response[0].Indicators.Quote[0].Close {
			if v != nil {
				closes = append(closes, *v)
			}
		}
		if len(closes) < 2 || closes[0] == 0 {
			continue
		}

		first, last := closes[0], closes[len(closes)-1]
		out[r.Symbol] = PriceChange{
			Price:     last,
			ChangePct: (last - first) / first * 100,
		}
	}

	return out, nil
}
