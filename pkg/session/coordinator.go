package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/reeldeck/reeldeck/pkg/identity"
	"github.com/reeldeck/reeldeck/pkg/userdata"
)

// Mode is the session mode.
type Mode int

const (
	// ModeUninitialized means no mode has been established yet. The
	// session stays here while the identity provider is confirming and
	// no optimistic identity is cached.
	ModeUninitialized Mode = iota

	// ModeGuest serves the anonymous device identity from the guest
	// store. Entered only after the provider confirms no identity.
	ModeGuest

	// ModeAuthenticated serves a provider identity from the account
	// store. May be entered optimistically before confirmation.
	ModeAuthenticated
)

// String returns the mode name for logging and metrics.
func (m Mode) String() string {
	switch m {
	case ModeGuest:
		return "guest"
	case ModeAuthenticated:
		return "authenticated"
	default:
		return "uninitialized"
	}
}

// Coordinator drives transitions between guest and authenticated modes and
// triggers the active store's synchronization. It owns the mode and active
// identity exclusively; stores and selectors never change them.
//
// The machine has no terminal state: a session may cycle through sign-in,
// sign-out, and sign-in again indefinitely.
type Coordinator struct {
	// transMu serializes whole transitions so store operations never run
	// under the state lock.
	transMu sync.Mutex

	// mu protects the fields below.
	mu            sync.RWMutex
	mode          Mode
	activeID      string
	transitioning bool
	synced        map[string]bool
	closed        bool

	guestID string
	guest   *userdata.Store
	account *userdata.Store

	observer *identity.Observer
	syncs    *SyncManager
	unsub    func()

	subs   map[uint64]func(Mode)
	nextID uint64

	logger      *slog.Logger
	metrics     *Metrics
	syncTimeout time.Duration
	wg          sync.WaitGroup
}

// CoordinatorConfig wires the coordinator's collaborators.
type CoordinatorConfig struct {
	// GuestStore serves the anonymous device identity.
	GuestStore *userdata.Store

	// AccountStore serves provider identities.
	AccountStore *userdata.Store

	// GuestID is the device's anonymous identity id.
	GuestID string

	// Observer supplies identity knowledge.
	Observer *identity.Observer

	// Syncs deduplicates synchronization runs.
	Syncs *SyncManager
}

// CoordinatorOption configures Coordinator behavior.
type CoordinatorOption func(*coordinatorConfig)

type coordinatorConfig struct {
	logger      *slog.Logger
	metrics     *Metrics
	syncTimeout time.Duration
}

// WithCoordinatorLogger sets the logger.
// Default: slog.Default().
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *coordinatorConfig) {
		c.logger = logger
	}
}

// WithCoordinatorMetrics attaches session metrics.
func WithCoordinatorMetrics(m *Metrics) CoordinatorOption {
	return func(c *coordinatorConfig) {
		c.metrics = m
	}
}

// WithSyncTimeout bounds each triggered synchronization.
// Default: 10 seconds.
func WithSyncTimeout(d time.Duration) CoordinatorOption {
	return func(c *coordinatorConfig) {
		c.syncTimeout = d
	}
}

// NewCoordinator creates a coordinator. Call Start to begin reacting to
// identity changes.
func NewCoordinator(cfg CoordinatorConfig, opts ...CoordinatorOption) *Coordinator {
	ccfg := &coordinatorConfig{
		logger:      slog.Default(),
		syncTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(ccfg)
	}

	return &Coordinator{
		mode:     ModeUninitialized,
		synced:   make(map[string]bool),
		guestID:  cfg.GuestID,
		guest:    cfg.GuestStore,
		account:  cfg.AccountStore,
		observer: cfg.Observer,
		syncs:    cfg.Syncs,
		subs:     make(map[uint64]func(Mode)),
		logger:   ccfg.logger.With("component", "session_coordinator"),
		metrics:  ccfg.metrics,
		syncTimeout: ccfg.syncTimeout,
	}
}

// Start applies the observer's current state and subscribes to changes.
func (c *Coordinator) Start() {
	c.apply(c.observer.State())
	c.unsub = c.observer.Subscribe(c.apply)
}

// Mode returns the current session mode.
func (c *Coordinator) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// ActiveIdentityID returns the identity the current mode is bound to.
// Empty while uninitialized.
func (c *Coordinator) ActiveIdentityID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeID
}

// Transitioning reports whether a mode transition is in progress.
func (c *Coordinator) Transitioning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transitioning
}

// ActiveStore returns the store backing the current mode, or nil while
// uninitialized.
func (c *Coordinator) ActiveStore() *userdata.Store {
	switch c.Mode() {
	case ModeGuest:
		return c.guest
	case ModeAuthenticated:
		return c.account
	default:
		return nil
	}
}

// GuestStore returns the guest store.
func (c *Coordinator) GuestStore() *userdata.Store {
	return c.guest
}

// AccountStore returns the account store.
func (c *Coordinator) AccountStore() *userdata.Store {
	return c.account
}

// Subscribe registers fn to be called after every mode change.
// Returns an unsubscribe function.
func (c *Coordinator) Subscribe(fn func(Mode)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// SignedIn applies an interactively established identity. The observer
// records it (updating the optimistic cache) and the coordinator
// transitions through its subscription.
func (c *Coordinator) SignedIn(ident *identity.Identity) {
	c.observer.Confirm(ident)
}

// SignedOut applies an interactive sign-out.
func (c *Coordinator) SignedOut() {
	c.observer.Confirm(nil)
}

// WaitForSyncs blocks until all triggered synchronizations have finished.
// This is for tests and graceful shutdown.
func (c *Coordinator) WaitForSyncs(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops reacting to identity changes and waits for in-flight
// synchronizations and store persists.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	unsub := c.unsub
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}

	if err := c.WaitForSyncs(ctx); err != nil {
		return err
	}
	if err := c.guest.Flush(ctx); err != nil {
		return err
	}
	return c.account.Flush(ctx)
}

// apply reconciles the session mode with an identity state.
//
// Transition rules:
//   - While the provider is loading, an optimistic identity enters
//     authenticated mode immediately. The absence of one keeps the session
//     uninitialized: guest mode is never entered on a guess, because a
//     guest flash can wipe or shadow a real account's data.
//   - Once confirmed, the mode must match the identity: present means
//     authenticated (rebinding if the id changed), absent means guest.
func (c *Coordinator) apply(s identity.State) {
	c.transMu.Lock()
	defer c.transMu.Unlock()

	c.mu.RLock()
	closed := c.closed
	mode := c.mode
	activeID := c.activeID
	c.mu.RUnlock()

	if closed {
		return
	}

	switch s.Phase {
	case identity.PhaseUnknown:
		// No guess available; stay put until the provider answers.

	case identity.PhaseOptimistic:
		if mode == ModeUninitialized {
			c.enterAuthenticated(s.OptimisticID)
		}

	case identity.PhaseConfirmed:
		if s.Identity != nil {
			if mode != ModeAuthenticated || activeID != s.Identity.ID {
				c.enterAuthenticated(s.Identity.ID)
			}
		} else if mode != ModeGuest {
			c.enterGuest()
		}
	}
}

// enterAuthenticated binds the account store to an identity and makes it
// active. Caller holds transMu.
func (c *Coordinator) enterAuthenticated(identityID string) {
	c.setTransitioning(true)
	defer c.setTransitioning(false)

	// A different previously bound identity gets its cache and sync
	// bookkeeping cleared so nothing leaks across accounts.
	if prev := c.account.IdentityID(); prev != "" && prev != identityID {
		c.account.ClearLocalCache()
		c.syncs.ClearUserSync(prev)
		c.forgetSynced(prev)
	}
	c.account.Bind(identityID)

	from := c.setMode(ModeAuthenticated, identityID)
	if from != ModeAuthenticated {
		c.metrics.recordTransition(from, ModeAuthenticated)
	}
	c.logger.Info("session mode changed",
		"from", from,
		"to", ModeAuthenticated,
		"identity_id", identityID)

	c.notifyMode(ModeAuthenticated)
	c.triggerSync(c.account, identityID)
}

// enterGuest makes the guest store active. Caller holds transMu, and the
// identity phase is confirmed-absent.
func (c *Coordinator) enterGuest() {
	c.setTransitioning(true)
	defer c.setTransitioning(false)

	c.guest.Bind(c.guestID)

	from := c.setMode(ModeGuest, c.guestID)
	c.metrics.recordTransition(from, ModeGuest)
	c.logger.Info("session mode changed",
		"from", from,
		"to", ModeGuest,
		"identity_id", c.guestID)

	c.notifyMode(ModeGuest)
	c.triggerSync(c.guest, c.guestID)
}

// triggerSync starts a background synchronization unless the identity has
// already been synchronized since its store was bound.
func (c *Coordinator) triggerSync(store *userdata.Store, identityID string) {
	c.mu.Lock()
	if c.synced[identityID] {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.syncTimeout)
		defer cancel()

		_, err := c.syncs.ExecuteSync(ctx, identityID, func(ctx context.Context) (any, error) {
			return nil, store.Sync(ctx, identityID)
		})
		if err != nil {
			// Fail-soft: the store flags itself offline; the session
			// keeps serving in-memory state.
			c.logger.Warn("synchronization failed",
				"identity_id", identityID,
				"error", err)
			return
		}

		c.mu.Lock()
		c.synced[identityID] = true
		c.mu.Unlock()
	}()
}

// setMode updates the mode fields and returns the previous mode.
func (c *Coordinator) setMode(mode Mode, identityID string) Mode {
	c.mu.Lock()
	from := c.mode
	c.mode = mode
	c.activeID = identityID
	c.mu.Unlock()
	return from
}

func (c *Coordinator) setTransitioning(v bool) {
	c.mu.Lock()
	c.transitioning = v
	c.mu.Unlock()
}

func (c *Coordinator) forgetSynced(identityID string) {
	c.mu.Lock()
	delete(c.synced, identityID)
	c.mu.Unlock()
}

// notifyMode fans a mode change out to subscribers outside the state lock.
func (c *Coordinator) notifyMode(mode Mode) {
	c.mu.RLock()
	fns := make([]func(Mode), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(mode)
	}
}
