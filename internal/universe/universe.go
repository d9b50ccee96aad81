// Package universe resolves scan universe selections to ticker lists.
package universe

import (
	"context"
	"strings"

	"options-scanner/internal/domain"
)

// Info describes one selectable universe for the catalogue endpoint.
type Info struct {
	ID    domain.Universe `json:"id"`
	Name  string          `json:"name"`
	Count *int            `json:"count"`
}

// Catalogue returns the selectable universes.
func Catalogue() []Info {
	sp100 := len(SP100Tickers)
	sp500 := len(SP500Tickers)
	return []Info{
		{ID: domain.UniverseSP100, Name: "S&P 100", Count: &sp100},
		{ID: domain.UniverseSP500, Name: "S&P 500", Count: &sp500},
		{ID: domain.UniverseCustom, Name: "Custom List", Count: nil},
	}
}

// Static resolves universes from the compiled-in index membership lists.
type Static struct{}

// NewStatic creates a static universe resolver.
func NewStatic() *Static {
	return &Static{}
}

// Resolve returns the deduplicated ticker set for the selection. For the
// custom universe only the parsed custom list is returned; for index
// universes any custom extras are appended after the base list.
func (s *Static) Resolve(_ context.Context, u domain.Universe, customTickers string) ([]string, error) {
	extras := ParseCustom(customTickers)

	var base []string
	switch u {
	case domain.UniverseSP100:
		base = append(base, SP100Tickers...)
	case domain.UniverseSP500:
		base = append(base, SP500Tickers...)
	case domain.UniverseCustom:
		return extras, nil
	}

	if len(extras) == 0 {
		return base, nil
	}

	seen := make(map[string]bool, len(base))
	for _, t := range base {
		seen[t] = true
	}
	for _, t := range extras {
		if !seen[t] {
			base = append(base, t)
			seen[t] = true
		}
	}
	return base, nil
}

// ParseCustom splits a comma-separated ticker list, trimming, uppercasing
// and deduplicating while preserving order.
func ParseCustom(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		t := strings.ToUpper(strings.TrimSpace(part))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
