package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/reeldeck/reeldeck/pkg/identity"
	"github.com/reeldeck/reeldeck/pkg/userdata"
)

// fakeProvider lets tests control when and how the identity provider
// answers.
type fakeProvider struct {
	mu sync.Mutex
	cb func(*identity.Identity, error)
}

func (p *fakeProvider) Observe(cb func(*identity.Identity, error)) func() {
	p.mu.Lock()
	p.cb = cb
	p.mu.Unlock()
	return func() {}
}

func (p *fakeProvider) SignIn(ctx context.Context, creds identity.Credentials) (*identity.Identity, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	return nil
}

func (p *fakeProvider) answer(ident *identity.Identity, err error) {
	p.mu.Lock()
	cb := p.cb
	p.mu.Unlock()
	if cb != nil {
		cb(ident, err)
	}
}

// countingAdapter wraps an adapter and counts Load calls.
type countingAdapter struct {
	userdata.Adapter

	mu    sync.Mutex
	loads int
}

func (a *countingAdapter) Load(ctx context.Context, identityID string) (*userdata.Record, error) {
	a.mu.Lock()
	a.loads++
	a.mu.Unlock()
	return a.Adapter.Load(ctx, identityID)
}

func (a *countingAdapter) loadCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loads
}

type coordEnv struct {
	provider *fakeProvider
	observer *identity.Observer
	coord    *Coordinator

	guestAdapter   *countingAdapter
	accountAdapter *countingAdapter
	guest          *userdata.Store
	account        *userdata.Store
}

func newCoordEnv(t *testing.T, markerID string) *coordEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	storage := identity.NewMemoryStorage()
	cache := identity.NewCache(storage)
	if markerID != "" {
		if err := cache.Remember(&identity.Identity{ID: markerID}); err != nil {
			t.Fatalf("Remember: %v", err)
		}
	}

	provider := &fakeProvider{}
	observer := identity.NewObserver(provider, cache,
		identity.WithObserverLogger(logger),
		identity.WithConfirmTimeout(time.Minute))
	observer.Start()
	t.Cleanup(observer.Close)

	guestAdapter := &countingAdapter{Adapter: userdata.NewMemoryAdapter()}
	accountAdapter := &countingAdapter{Adapter: userdata.NewMemoryAdapter()}
	guest := userdata.NewStore(userdata.ScopeGuest, guestAdapter,
		userdata.WithStoreLogger(logger))
	account := userdata.NewStore(userdata.ScopeAccount, accountAdapter,
		userdata.WithStoreLogger(logger))

	coord := NewCoordinator(CoordinatorConfig{
		GuestStore:   guest,
		AccountStore: account,
		GuestID:      "guest-device-1",
		Observer:     observer,
		Syncs:        NewSyncManager(WithSyncLogger(logger)),
	}, WithCoordinatorLogger(logger))

	return &coordEnv{
		provider:       provider,
		observer:       observer,
		coord:          coord,
		guestAdapter:   guestAdapter,
		accountAdapter: accountAdapter,
		guest:          guest,
		account:        account,
	}
}

func (e *coordEnv) settle(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.coord.WaitForSyncs(ctx); err != nil {
		t.Fatalf("WaitForSyncs: %v", err)
	}
	if err := e.guest.Flush(ctx); err != nil {
		t.Fatalf("guest Flush: %v", err)
	}
	if err := e.account.Flush(ctx); err != nil {
		t.Fatalf("account Flush: %v", err)
	}
}

func TestCoordinatorStaysUninitializedWhileLoading(t *testing.T) {
	env := newCoordEnv(t, "")
	env.coord.Start()

	if got := env.coord.Mode(); got != ModeUninitialized {
		t.Fatalf("mode = %v, want uninitialized", got)
	}
	if env.coord.ActiveStore() != nil {
		t.Fatal("expected no active store before confirmation")
	}
}

func TestCoordinatorEntersGuestOnConfirmedAbsence(t *testing.T) {
	env := newCoordEnv(t, "")
	env.coord.Start()

	env.provider.answer(nil, nil)

	if got := env.coord.Mode(); got != ModeGuest {
		t.Fatalf("mode = %v, want guest", got)
	}
	if got := env.coord.ActiveIdentityID(); got != "guest-device-1" {
		t.Fatalf("active identity = %q, want guest-device-1", got)
	}
	if env.coord.ActiveStore() != env.guest {
		t.Fatal("active store is not the guest store")
	}
	env.settle(t)
}

func TestCoordinatorOptimisticEntry(t *testing.T) {
	env := newCoordEnv(t, "user-1")
	env.coord.Start()

	// A cached marker enters authenticated mode before the provider
	// answers. No guest flash.
	if got := env.coord.Mode(); got != ModeAuthenticated {
		t.Fatalf("mode = %v, want authenticated", got)
	}
	if got := env.account.IdentityID(); got != "user-1" {
		t.Fatalf("account bound to %q, want user-1", got)
	}

	env.provider.answer(&identity.Identity{ID: "user-1"}, nil)

	if got := env.coord.Mode(); got != ModeAuthenticated {
		t.Fatalf("mode after confirm = %v, want authenticated", got)
	}
	if got := env.coord.ActiveIdentityID(); got != "user-1" {
		t.Fatalf("active identity = %q, want user-1", got)
	}
	env.settle(t)
}

func TestCoordinatorOptimisticThenConfirmedAbsent(t *testing.T) {
	env := newCoordEnv(t, "user-1")
	env.coord.Start()

	if got := env.coord.Mode(); got != ModeAuthenticated {
		t.Fatalf("mode = %v, want authenticated", got)
	}

	env.provider.answer(nil, nil)

	if got := env.coord.Mode(); got != ModeGuest {
		t.Fatalf("mode = %v, want guest after confirmed absence", got)
	}
	env.settle(t)
}

func TestCoordinatorSignInCycle(t *testing.T) {
	ctx := context.Background()
	env := newCoordEnv(t, "")
	env.coord.Start()
	env.provider.answer(nil, nil)
	env.settle(t)

	env.guest.AddToWatchlist(ctx, userdata.ContentRef{ID: "m1", Title: "Movie One"})
	env.settle(t)

	env.coord.SignedIn(&identity.Identity{ID: "user-1"})
	env.settle(t)

	if got := env.coord.Mode(); got != ModeAuthenticated {
		t.Fatalf("mode = %v, want authenticated", got)
	}
	if got := len(env.account.Snapshot().Watchlist); got != 0 {
		t.Fatalf("guest data leaked into account store: %d items", got)
	}

	env.account.AddToWatchlist(ctx, userdata.ContentRef{ID: "m2", Title: "Movie Two"})
	env.settle(t)

	env.coord.SignedOut()
	env.settle(t)

	if got := env.coord.Mode(); got != ModeGuest {
		t.Fatalf("mode = %v, want guest after sign-out", got)
	}
	wl := env.guest.Snapshot().Watchlist
	if len(wl) != 1 || wl[0].ID != "m1" {
		t.Fatalf("guest watchlist = %+v, want the original guest item", wl)
	}

	// Signing in again as a different account must not show user-1 data.
	env.coord.SignedIn(&identity.Identity{ID: "user-2"})
	env.settle(t)

	if got := env.account.IdentityID(); got != "user-2" {
		t.Fatalf("account bound to %q, want user-2", got)
	}
	if got := len(env.account.Snapshot().Watchlist); got != 0 {
		t.Fatalf("user-1 data leaked into user-2 session: %d items", got)
	}
	env.settle(t)
}

func TestCoordinatorIdentitySwitchReloadsFromBackend(t *testing.T) {
	ctx := context.Background()
	env := newCoordEnv(t, "")

	// Seed persisted data for user-2 before anyone signs in.
	seeded := userdata.NewRecord("user-2")
	seeded.Watchlist = []userdata.ContentRef{{ID: "m9", Title: "Movie Nine"}}
	if err := env.accountAdapter.Save(ctx, "user-2", seeded); err != nil {
		t.Fatalf("Save: %v", err)
	}

	env.coord.Start()
	env.coord.SignedIn(&identity.Identity{ID: "user-1"})
	env.settle(t)

	env.coord.SignedIn(&identity.Identity{ID: "user-2"})
	env.settle(t)

	wl := env.account.Snapshot().Watchlist
	if len(wl) != 1 || wl[0].ID != "m9" {
		t.Fatalf("watchlist = %+v, want user-2 persisted data", wl)
	}
}

func TestCoordinatorSyncRunsOncePerIdentity(t *testing.T) {
	env := newCoordEnv(t, "")
	env.coord.Start()

	env.provider.answer(nil, nil)
	env.settle(t)

	env.coord.SignedIn(&identity.Identity{ID: "user-1"})
	env.settle(t)
	env.coord.SignedOut()
	env.settle(t)

	// Guest mode was entered twice, but its data was never cleared, so
	// only the first entry loads from the backend.
	if got := env.guestAdapter.loadCount(); got != 1 {
		t.Fatalf("guest loads = %d, want 1", got)
	}
}

func TestCoordinatorSyncFailureIsSoft(t *testing.T) {
	env := newCoordEnv(t, "")
	failing := &failingLoadAdapter{}
	guest := userdata.NewStore(userdata.ScopeGuest, failing,
		userdata.WithStoreLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	env.coord.guest = guest

	env.coord.Start()
	env.provider.answer(nil, nil)

	if got := env.coord.Mode(); got != ModeGuest {
		t.Fatalf("mode = %v, want guest despite sync failure", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.coord.WaitForSyncs(ctx); err != nil {
		t.Fatalf("WaitForSyncs: %v", err)
	}

	if got := guest.Snapshot().SyncStatus; got != userdata.StatusOffline {
		t.Fatalf("sync status = %q, want offline", got)
	}
}

type failingLoadAdapter struct{}

func (a *failingLoadAdapter) Load(ctx context.Context, identityID string) (*userdata.Record, error) {
	return nil, errors.New("backend unavailable")
}

func (a *failingLoadAdapter) Save(ctx context.Context, identityID string, rec *userdata.Record) error {
	return nil
}

func (a *failingLoadAdapter) Delete(ctx context.Context, identityID string) error {
	return nil
}

func (a *failingLoadAdapter) Close() error { return nil }

func TestCoordinatorModeSubscription(t *testing.T) {
	env := newCoordEnv(t, "")
	env.coord.Start()

	var mu sync.Mutex
	var modes []Mode
	unsub := env.coord.Subscribe(func(m Mode) {
		mu.Lock()
		modes = append(modes, m)
		mu.Unlock()
	})
	defer unsub()

	env.provider.answer(nil, nil)
	env.coord.SignedIn(&identity.Identity{ID: "user-1"})
	env.settle(t)

	mu.Lock()
	defer mu.Unlock()
	want := []Mode{ModeGuest, ModeAuthenticated}
	if len(modes) != len(want) {
		t.Fatalf("modes = %v, want %v", modes, want)
	}
	for i := range want {
		if modes[i] != want[i] {
			t.Fatalf("modes = %v, want %v", modes, want)
		}
	}
}

func TestCoordinatorShutdownIgnoresLateChanges(t *testing.T) {
	env := newCoordEnv(t, "")
	env.coord.Start()
	env.provider.answer(nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.coord.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	before := env.coord.Mode()
	env.coord.SignedIn(&identity.Identity{ID: "user-1"})
	if got := env.coord.Mode(); got != before {
		t.Fatalf("mode changed after shutdown: %v -> %v", before, got)
	}
}
