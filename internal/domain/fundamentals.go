package domain

// FundamentalsRecord is one ticker's row in the static reference snapshot
// (JSON file or ticker_fundamentals table). Loaded once at process start and
// treated as read-only.
type FundamentalsRecord struct {
	Ticker            string   // symbol, primary key
	Name              string   // display name
	Sector            string   // GICS sector, "Other" when unknown
	TrailingPE        *float64 // trailing P/E ratio (nullable)
	EarningsTimestamp *int64   // next earnings date, Unix seconds (nullable)
	MarketCap         *float64 // market capitalization in USD (nullable)
}
