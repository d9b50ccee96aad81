package universe

import (
	"context"
	"errors"

	"options-scanner/internal/domain"
	"options-scanner/internal/storage"
)

// StoreResolver resolves index universes from a ticker-universe table,
// falling back to the compiled-in lists when the table has no entry. The
// custom universe never touches the store.
type StoreResolver struct {
	store    storage.UniverseStore
	fallback *Static
}

// NewStoreResolver creates a resolver backed by store.
func NewStoreResolver(store storage.UniverseStore) *StoreResolver {
	return &StoreResolver{store: store, fallback: NewStatic()}
}

// Resolve returns the ticker set for the selection. Custom extras are merged
// the same way Static merges them.
func (r *StoreResolver) Resolve(ctx context.Context, u domain.Universe, customTickers string) ([]string, error) {
	if u == domain.UniverseCustom {
		return ParseCustom(customTickers), nil
	}

	base, err := r.store.Tickers(ctx, u)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		base = nil
	}
	if len(base) == 0 {
		return r.fallback.Resolve(ctx, u, customTickers)
	}

	extras := ParseCustom(customTickers)
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
