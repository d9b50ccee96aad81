package scanner

import (
	"math"

	"options-scanner/internal/domain"
)

// evaluateContract applies every option-level filter to one raw chain row and
// derives the full result on success. Returns nil when any filter rejects the
// row. Rejection order matters only for cost: the zero-cost checks run before
// the derived-value ones.
func evaluateContract(row domain.OptionContractCandidate, ticker string, stockPrice float64, exp domain.Date, dte int, side domain.OptionSide, f *domain.TickerFundamentals, filters *domain.ScanFilters) *domain.OptionResult {
	premium := row.LastPrice
	if premium <= 0 {
		return nil
	}

	volume := 0
	if row.Volume != nil {
		volume = *row.Volume
	}
	openInterest := 0
	if row.OpenInterest != nil {
		openInterest = *row.OpenInterest
	}

	var isITM bool
	if side == domain.SideCall {
		isITM = stockPrice > row.Strike
	} else {
		isITM = stockPrice < row.Strike
	}
	moneyness := domain.OTM
	if isITM {
		moneyness = domain.ITM
	}

	if filters.Moneyness == domain.MoneynessITM && !isITM {
		return nil
	}
	if filters.Moneyness == domain.MoneynessOTM && isITM {
		return nil
	}

	if filters.MinVolume != nil && volume < *filters.MinVolume {
		return nil
	}

	// Puts are cash-secured against the strike; calls are covered by 100
	// shares at the current price.
	var collateral float64
	if side == domain.SidePut {
		collateral = row.Strike * 100
	} else {
		collateral = stockPrice * 100
	}

	if filters.AvailableCollateral != nil && collateral > *filters.AvailableCollateral {
		return nil
	}

	var roi float64
	if collateral > 0 {
		roi = (premium * 100 / collateral) * 100
	}
	var annualizedROI float64
	if dte > 0 {
		annualizedROI = roi * (365 / float64(dte))
	}

	if filters.MinROI != nil && roi < *filters.MinROI {
		return nil
	}

	result := &domain.OptionResult{
		Ticker:        ticker,
		StockPrice:    round2(stockPrice),
		Strike:        round2(row.Strike),
		Expiration:    exp,
		DTE:           dte,
		OptionType:    side,
		Premium:       round2(premium),
		Volume:        volume,
		OpenInterest:  openInterest,
		Collateral:    round2(collateral),
		ROI:           round2(roi),
		AnnualizedROI: round2(annualizedROI),
		Moneyness:     moneyness,
	}

	if row.Bid != nil && *row.Bid != 0 {
		b := round2(*row.Bid)
		result.Bid = &b
	}
	if row.Ask != nil && *row.Ask != 0 {
		a := round2(*row.Ask)
		result.Ask = &a
	}
	if row.ImpliedVolatility != nil && *row.ImpliedVolatility != 0 {
		iv := round4(*row.ImpliedVolatility)
		result.ImpliedVolatility = &iv
	}
	if f.PERatio != nil && *f.PERatio != 0 {
		pe := round2(*f.PERatio)
		result.PERatio = &pe
	}
	if f.NextEarnings != nil {
		d := domain.NewDate(*f.NextEarnings)
		result.NextEarningsDate = &d
	}

	return result
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
