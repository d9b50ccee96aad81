package universe

import (
	"context"
	"testing"

	"options-scanner/internal/domain"
	"options-scanner/internal/storage"
)

// fakeUniverseStore is a map-backed storage.UniverseStore.
type fakeUniverseStore struct {
	universes map[domain.Universe][]string
	err       error
}

func (f *fakeUniverseStore) Tickers(_ context.Context, u domain.Universe) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	tickers, ok := f.universes[u]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return tickers, nil
}

func TestStoreResolver_UsesStoredUniverse(t *testing.T) {
	r := NewStoreResolver(&fakeUniverseStore{
		universes: map[domain.Universe][]string{
			domain.UniverseSP100: {"AAPL", "MSFT"},
		},
	})

	got, err := r.Resolve(context.Background(), domain.UniverseSP100, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 2 || got[0] != "AAPL" {
		t.Errorf("expected stored tickers, got %v", got)
	}
}

func TestStoreResolver_FallsBackToStatic(t *testing.T) {
	r := NewStoreResolver(&fakeUniverseStore{universes: map[domain.Universe][]string{}})

	got, err := r.Resolve(context.Background(), domain.UniverseSP100, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != len(SP100Tickers) {
		t.Errorf("expected compiled-in fallback of %d tickers, got %d", len(SP100Tickers), len(got))
	}
}

func TestStoreResolver_CustomSkipsStore(t *testing.T) {
	r := NewStoreResolver(&fakeUniverseStore{err: context.DeadlineExceeded})

	got, err := r.Resolve(context.Background(), domain.UniverseCustom, "aapl, msft ,aapl")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("unexpected custom resolution %v", got)
	}
}

func TestStoreResolver_MergesCustomExtras(t *testing.T) {
	r := NewStoreResolver(&fakeUniverseStore{
		universes: map[domain.Universe][]string{
			domain.UniverseSP100: {"AAPL"},
		},
	})

	got, err := r.Resolve(context.Background(), domain.UniverseSP100, "NVDA,AAPL")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 2 || got[1] != "NVDA" {
		t.Errorf("expected extras appended without duplicates, got %v", got)
	}
}

func TestStoreResolver_PropagatesStoreErrors(t *testing.T) {
	r := NewStoreResolver(&fakeUniverseStore{err: context.DeadlineExceeded})

	if _, err := r.Resolve(context.Background(), domain.UniverseSP100, ""); err == nil {
		t.Fatal("expected error from failing store")
	}
}
