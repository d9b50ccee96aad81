package domain

import (
	"errors"
	"fmt"
	"strings"
)

// OptionType selects which sides of an option chain to scan.
type OptionType string

const (
	OptionTypeCalls OptionType = "calls"
	OptionTypePuts  OptionType = "puts"
	OptionTypeBoth  OptionType = "both"
)

// MoneynessFilter restricts results by moneyness.
type MoneynessFilter string

const (
	MoneynessITM  MoneynessFilter = "itm"
	MoneynessOTM  MoneynessFilter = "otm"
	MoneynessBoth MoneynessFilter = "both"
)

// Universe identifies the base ticker set for a scan.
type Universe string

const (
	UniverseSP100  Universe = "sp100"
	UniverseSP500  Universe = "sp500"
	UniverseCustom Universe = "custom"
)

// Validation errors.
var (
	ErrCustomTickersRequired = errors.New("custom_tickers required when universe is custom")
	ErrNegativeBound         = errors.New("filter bounds must be non-negative")
)

// ScanFilters is the full filter payload for one scan request.
// It is created once per request and read-only for the scan's duration.
// Nil pointer fields mean the filter is unset.
type ScanFilters struct {
	// Stock filters
	MinStockPrice *float64 `json:"min_stock_price,omitempty"`
	MaxStockPrice *float64 `json:"max_stock_price,omitempty"`
	MinPERatio    *float64 `json:"min_pe_ratio,omitempty"`
	MaxPERatio    *float64 `json:"max_pe_ratio,omitempty"`

	// Option filters
	AvailableCollateral *float64        `json:"available_collateral,omitempty"`
	MinVolume           *int            `json:"min_volume,omitempty"`
	MinROI              *float64        `json:"min_roi,omitempty"`
	OptionType          OptionType      `json:"option_type,omitempty"`
	Moneyness           MoneynessFilter `json:"moneyness,omitempty"`
	MinDTE              *int            `json:"min_dte,omitempty"`
	MaxDTE              *int            `json:"max_dte,omitempty"`

	// Universe selection
	Universe      Universe `json:"universe,omitempty"`
	CustomTickers string   `json:"custom_tickers,omitempty"`
}

// Normalize fills defaulted enum fields so downstream stages can switch on
// them without re-checking for the empty string.
func (f *ScanFilters) Normalize() {
	if f.OptionType == "" {
		f.OptionType = OptionTypeBoth
	}
	if f.Moneyness == "" {
		f.Moneyness = MoneynessBoth
	}
	if f.Universe == "" {
		f.Universe = UniverseSP100
	}
}

// Validate checks the request invariants before any scan work starts.
func (f *ScanFilters) Validate() error {
	f.Normalize()

	switch f.OptionType {
	case OptionTypeCalls, OptionTypePuts, OptionTypeBoth:
	default:
		return fmt.Errorf("invalid option_type %q", f.OptionType)
	}

	switch f.Moneyness {
	case MoneynessITM, MoneynessOTM, MoneynessBoth:
	default:
		return fmt.Errorf("invalid moneyness %q", f.Moneyness)
	}

	switch f.Universe {
	case UniverseSP100, UniverseSP500:
	case UniverseCustom:
		if strings.TrimSpace(f.CustomTickers) == "" {
			return ErrCustomTickersRequired
		}
	default:
		return fmt.Errorf("invalid universe %q", f.Universe)
	}

	for _, b := range []*float64{f.MinStockPrice, f.MaxStockPrice, f.AvailableCollateral} {
		if b != nil && *b < 0 {
			return ErrNegativeBound
		}
	}
	for _, b := range []*int{f.MinVolume, f.MinDTE, f.MaxDTE} {
		if b != nil && *b < 0 {
			return ErrNegativeBound
		}
	}
	if f.MinROI != nil && (*f.MinROI < 0 || *f.MinROI > 100) {
		return fmt.Errorf("min_roi must be within [0, 100], got %v", *f.MinROI)
	}

	return nil
}

// WantsCalls reports whether call rows should be scanned.
func (f *ScanFilters) WantsCalls() bool {
	return f.OptionType == OptionTypeCalls || f.OptionType == OptionTypeBoth
}

// WantsPuts reports whether put rows should be scanned.
func (f *ScanFilters) WantsPuts() bool {
	return f.OptionType == OptionTypePuts || f.OptionType == OptionTypeBoth
}
