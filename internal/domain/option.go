package domain

import (
	"fmt"
	"time"
)

// OptionSide is the contract side: call or put.
type OptionSide string

const (
	SideCall OptionSide = "call"
	SidePut  OptionSide = "put"
)

// Moneyness of a contract relative to the current stock price.
const (
	ITM = "ITM"
	OTM = "OTM"
)

// TickerQuote is one ticker's last price as resolved by the bulk price stage.
// Price is nil when the provider has no data for the symbol.
type TickerQuote struct {
	Ticker string
	Price  *float64
}

// TickerFundamentals holds the per-ticker data the fundamentals stage merges
// from the static snapshot and the provider fallback. Never mutated after
// construction.
type TickerFundamentals struct {
	Ticker       string
	Price        *float64
	PERatio      *float64
	Name         string
	NextEarnings *time.Time
	MarketCap    *float64
}

// OptionContractCandidate is one raw chain row, scoped to a
// (ticker, expiration, side) triple. Pointer fields are absent when the
// provider omits them.
type OptionContractCandidate struct {
	Strike            float64
	LastPrice         float64
	Bid               *float64
	Ask               *float64
	Volume            *int
	OpenInterest      *int
	ImpliedVolatility *float64
}

// Date is a calendar date that marshals as an ISO-8601 string (YYYY-MM-DD).
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	t, err := time.Parse("2006-01-02", s[1:len(s)-1])
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// OptionResult is one fully derived, filter-passing contract. Created only
// after every filter passes; emitted exactly once; never mutated.
type OptionResult struct {
	Ticker            string     `json:"ticker"`
	StockPrice        float64    `json:"stock_price"`
	Strike            float64    `json:"strike"`
	Expiration        Date       `json:"expiration"`
	DTE               int        `json:"dte"`
	OptionType        OptionSide `json:"option_type"`
	Premium           float64    `json:"premium"`
	Bid               *float64   `json:"bid,omitempty"`
	Ask               *float64   `json:"ask,omitempty"`
	Volume            int        `json:"volume"`
	OpenInterest      int        `json:"open_interest"`
	ImpliedVolatility *float64   `json:"implied_volatility,omitempty"`
	Collateral        float64    `json:"collateral"`
	ROI               float64    `json:"roi"`
	AnnualizedROI     float64    `json:"annualized_roi"`
	Moneyness         string     `json:"moneyness"`
	PERatio           *float64   `json:"pe_ratio,omitempty"`
	NextEarningsDate  *Date      `json:"next_earnings_date,omitempty"`
}
