package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestScanFilters_ValidateDefaults(t *testing.T) {
	f := ScanFilters{}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if f.OptionType != OptionTypeBoth {
		t.Errorf("expected default option_type both, got %s", f.OptionType)
	}
	if f.Moneyness != MoneynessBoth {
		t.Errorf("expected default moneyness both, got %s", f.Moneyness)
	}
	if f.Universe != UniverseSP100 {
		t.Errorf("expected default universe sp100, got %s", f.Universe)
	}
}

func TestScanFilters_CustomRequiresTickers(t *testing.T) {
	f := ScanFilters{Universe: UniverseCustom, CustomTickers: ""}
	err := f.Validate()
	if !errors.Is(err, ErrCustomTickersRequired) {
		t.Errorf("expected ErrCustomTickersRequired, got %v", err)
	}

	f.CustomTickers = "   "
	err = f.Validate()
	if !errors.Is(err, ErrCustomTickersRequired) {
		t.Errorf("expected ErrCustomTickersRequired for blank list, got %v", err)
	}

	f.CustomTickers = "AAPL,MSFT"
	if err := f.Validate(); err != nil {
		t.Errorf("Validate failed with custom tickers: %v", err)
	}
}

func TestScanFilters_NegativeBounds(t *testing.T) {
	neg := -1.0
	f := ScanFilters{MinStockPrice: &neg}
	if err := f.Validate(); !errors.Is(err, ErrNegativeBound) {
		t.Errorf("expected ErrNegativeBound, got %v", err)
	}

	negDTE := -5
	f = ScanFilters{MinDTE: &negDTE}
	if err := f.Validate(); !errors.Is(err, ErrNegativeBound) {
		t.Errorf("expected ErrNegativeBound for DTE, got %v", err)
	}
}

func TestScanFilters_ROIRange(t *testing.T) {
	over := 150.0
	f := ScanFilters{MinROI: &over}
	if err := f.Validate(); err == nil {
		t.Error("expected error for min_roi > 100")
	}

	ok := 5.0
	f = ScanFilters{MinROI: &ok}
	if err := f.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestScanFilters_InvalidEnums(t *testing.T) {
	f := ScanFilters{OptionType: "straddles"}
	if err := f.Validate(); err == nil {
		t.Error("expected error for invalid option_type")
	}

	f = ScanFilters{Moneyness: "atm"}
	if err := f.Validate(); err == nil {
		t.Error("expected error for invalid moneyness")
	}

	f = ScanFilters{Universe: "russell2000"}
	if err := f.Validate(); err == nil {
		t.Error("expected error for invalid universe")
	}
}

func TestScanFilters_Sides(t *testing.T) {
	f := ScanFilters{OptionType: OptionTypeCalls}
	if !f.WantsCalls() || f.WantsPuts() {
		t.Error("calls-only filter should want calls and not puts")
	}

	f.OptionType = OptionTypeBoth
	if !f.WantsCalls() || !f.WantsPuts() {
		t.Error("both filter should want both sides")
	}
}

func TestDate_MarshalJSON(t *testing.T) {
	d := NewDate(time.Date(2026, 9, 18, 15, 30, 0, 0, time.UTC))
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(b) != `"2026-09-18"` {
		t.Errorf("expected \"2026-09-18\", got %s", b)
	}

	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Errorf("round trip mismatch: got %v, want %v", back, d)
	}
}

func TestOptionResult_WireFormat(t *testing.T) {
	bid := 1.2
	pe := 28.41
	earnings := NewDate(time.Date(2026, 10, 29, 0, 0, 0, 0, time.UTC))

	r := OptionResult{
		Ticker:           "AAPL",
		StockPrice:       230.5,
		Strike:           225,
		Expiration:       NewDate(time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)),
		DTE:              18,
		OptionType:       SidePut,
		Premium:          2.15,
		Bid:              &bid,
		Volume:           412,
		OpenInterest:     1800,
		Collateral:       22500,
		ROI:              0.96,
		AnnualizedROI:    19.47,
		Moneyness:        OTM,
		PERatio:          &pe,
		NextEarningsDate: &earnings,
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if m["expiration"] != "2026-09-18" {
		t.Errorf("expiration encoding: got %v", m["expiration"])
	}
	if m["next_earnings_date"] != "2026-10-29" {
		t.Errorf("next_earnings_date encoding: got %v", m["next_earnings_date"])
	}
	if m["option_type"] != "put" {
		t.Errorf("option_type encoding: got %v", m["option_type"])
	}
	if _, present := m["ask"]; present {
		t.Error("nil ask should be omitted")
	}
}
