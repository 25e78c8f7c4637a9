package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeProvider lets tests control when and how the provider answers.
type fakeProvider struct {
	mu       sync.Mutex
	callback func(*Identity, error)
}

func (f *fakeProvider) Observe(callback func(*Identity, error)) func() {
	f.mu.Lock()
	f.callback = callback
	f.mu.Unlock()
	return func() {}
}

func (f *fakeProvider) SignIn(ctx context.Context, creds Credentials) (*Identity, error) {
	return nil, &ProviderError{Code: "invalid_credentials"}
}

func (f *fakeProvider) SignOut(ctx context.Context) error { return nil }

// answer delivers a provider confirmation to the observer.
func (f *fakeProvider) answer(ident *Identity, err error) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	if cb != nil {
		cb(ident, err)
	}
}

func newTestObserver(t *testing.T, provider Provider, cache *Cache, opts ...ObserverOption) *Observer {
	t.Helper()
	obs := NewObserver(provider, cache, opts...)
	t.Cleanup(obs.Close)
	return obs
}

// TestObserverStartsUnknown tests the initial phase with no cached marker.
func TestObserverStartsUnknown(t *testing.T) {
	provider := &fakeProvider{}
	obs := newTestObserver(t, provider, NewCache(NewMemoryStorage()),
		WithConfirmTimeout(time.Minute))
	obs.Start()

	state := obs.State()
	if state.Phase != PhaseUnknown {
		t.Errorf("phase = %v, want unknown", state.Phase)
	}
	if !state.IsLoading() {
		t.Error("IsLoading = false before confirmation")
	}
}

// TestObserverOptimisticFromCache tests that a cached marker yields an
// optimistic identity before the provider answers.
func TestObserverOptimisticFromCache(t *testing.T) {
	storage := NewMemoryStorage()
	cache := NewCache(storage)
	if err := cache.Remember(&Identity{ID: "user-a", Email: "a@example.com"}); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	provider := &fakeProvider{}
	obs := newTestObserver(t, provider, cache, WithConfirmTimeout(time.Minute))
	obs.Start()

	state := obs.State()
	if state.Phase != PhaseOptimistic {
		t.Fatalf("phase = %v, want optimistic", state.Phase)
	}
	if state.OptimisticID != "user-a" {
		t.Errorf("optimistic id = %q, want user-a", state.OptimisticID)
	}

	// Provider confirms the same identity.
	provider.answer(&Identity{ID: "user-a"}, nil)

	state = obs.State()
	if state.Phase != PhaseConfirmed || state.Identity == nil || state.Identity.ID != "user-a" {
		t.Errorf("state after confirmation = %+v", state)
	}
	if state.IsLoading() {
		t.Error("IsLoading = true after confirmation")
	}
}

// TestObserverConfirmsAbsence tests confirmation of a signed-out device
// and clearing of the stale marker.
func TestObserverConfirmsAbsence(t *testing.T) {
	storage := NewMemoryStorage()
	cache := NewCache(storage)
	if err := cache.Remember(&Identity{ID: "user-a"}); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	provider := &fakeProvider{}
	obs := newTestObserver(t, provider, cache, WithConfirmTimeout(time.Minute))
	obs.Start()

	provider.answer(nil, nil)

	state := obs.State()
	if state.Phase != PhaseConfirmed || state.Identity != nil {
		t.Errorf("state = %+v, want confirmed absence", state)
	}
	if cache.OptimisticID() != "" {
		t.Error("stale marker survived confirmed absence")
	}
}

// TestObserverProviderErrorFailsTowardGuest tests that provider errors
// confirm absence instead of hanging in the optimistic state.
func TestObserverProviderErrorFailsTowardGuest(t *testing.T) {
	provider := &fakeProvider{}
	obs := newTestObserver(t, provider, NewCache(NewMemoryStorage()),
		WithConfirmTimeout(time.Minute))
	obs.Start()

	provider.answer(nil, errors.New("provider unreachable"))

	state := obs.State()
	if state.Phase != PhaseConfirmed || state.Identity != nil {
		t.Errorf("state = %+v, want confirmed absence", state)
	}
}

// TestObserverTimeoutFallback tests the bounded wait for the provider.
func TestObserverTimeoutFallback(t *testing.T) {
	provider := &fakeProvider{}
	obs := newTestObserver(t, provider, NewCache(NewMemoryStorage()),
		WithConfirmTimeout(20*time.Millisecond))

	confirmed := make(chan State, 1)
	obs.Subscribe(func(s State) {
		if s.Phase == PhaseConfirmed {
			select {
			case confirmed <- s:
			default:
			}
		}
	})

	obs.Start()

	select {
	case state := <-confirmed:
		if state.Identity != nil {
			t.Errorf("timeout confirmed an identity: %+v", state.Identity)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("observer never confirmed after timeout")
	}
}

// TestObserverLateAnswerStillApplies tests that a provider answer arriving
// after the timeout fallback still updates the state.
func TestObserverLateAnswerStillApplies(t *testing.T) {
	provider := &fakeProvider{}
	obs := newTestObserver(t, provider, NewCache(NewMemoryStorage()),
		WithConfirmTimeout(10*time.Millisecond))
	obs.Start()

	// Wait out the fallback.
	deadline := time.Now().Add(2 * time.Second)
	for obs.State().Phase != PhaseConfirmed {
		if time.Now().After(deadline) {
			t.Fatal("observer never confirmed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	provider.answer(&Identity{ID: "user-a"}, nil)

	state := obs.State()
	if state.Identity == nil || state.Identity.ID != "user-a" {
		t.Errorf("late answer not applied: %+v", state)
	}
}

// TestObserverSubscription tests state fan-out and unsubscribe.
func TestObserverSubscription(t *testing.T) {
	provider := &fakeProvider{}
	obs := newTestObserver(t, provider, NewCache(NewMemoryStorage()),
		WithConfirmTimeout(time.Minute))
	obs.Start()

	var mu sync.Mutex
	var got []State
	unsub := obs.Subscribe(func(s State) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	provider.answer(&Identity{ID: "user-a"}, nil)

	mu.Lock()
	n := len(got)
	mu.Unlock()
	if n == 0 {
		t.Fatal("no notifications delivered")
	}

	unsub()
	provider.answer(nil, nil)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != n {
		t.Error("notification delivered after unsubscribe")
	}
}
