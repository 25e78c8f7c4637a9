package identity

import (
	"log/slog"
	"sync"
	"time"
)

// Phase is how much the observer currently knows about the identity.
type Phase int

const (
	// PhaseUnknown means no cached marker and no provider answer yet.
	PhaseUnknown Phase = iota

	// PhaseOptimistic means a cached marker suggests the device was
	// recently signed in, but the provider has not confirmed.
	PhaseOptimistic

	// PhaseConfirmed means the provider has answered, with an identity
	// or with none. Once reached, the observer never leaves this phase.
	PhaseConfirmed
)

// String returns the phase name for logging.
func (p Phase) String() string {
	switch p {
	case PhaseOptimistic:
		return "optimistic"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of identity knowledge.
type State struct {
	// Phase is the knowledge phase.
	Phase Phase

	// OptimisticID is the cached best-guess identity id.
	// Set only while Phase is PhaseOptimistic.
	OptimisticID string

	// Identity is the confirmed identity, nil if the provider confirmed
	// that none exists. Meaningful only when Phase is PhaseConfirmed.
	Identity *Identity
}

// IsLoading reports whether the provider has not yet confirmed.
func (s State) IsLoading() bool {
	return s.Phase != PhaseConfirmed
}

// Observer tracks the identity provider's answer and the optimistic cache.
// It guarantees a confirmation within the configured timeout: if the
// provider stays silent, absence is confirmed so the session can fall back
// to guest mode instead of hanging in the optimistic state.
type Observer struct {
	mu sync.RWMutex

	provider Provider
	cache    *Cache
	state    State

	// confirmedOnce is set by the first confirmation (provider answer,
	// provider error, or timeout) and never cleared.
	confirmedOnce bool

	subs   map[uint64]func(State)
	nextID uint64

	timer  *time.Timer
	unsub  func()
	closed bool

	logger         *slog.Logger
	confirmTimeout time.Duration
}

// ObserverOption configures Observer behavior.
type ObserverOption func(*observerConfig)

type observerConfig struct {
	logger         *slog.Logger
	confirmTimeout time.Duration
}

// WithConfirmTimeout bounds how long the observer waits for the provider's
// first answer before confirming absence. Default: 1500ms.
func WithConfirmTimeout(d time.Duration) ObserverOption {
	return func(c *observerConfig) {
		c.confirmTimeout = d
	}
}

// WithObserverLogger sets the logger.
// Default: slog.Default().
func WithObserverLogger(logger *slog.Logger) ObserverOption {
	return func(c *observerConfig) {
		c.logger = logger
	}
}

// NewObserver creates an observer over the given provider and cache.
// Call Start to begin observing.
func NewObserver(provider Provider, cache *Cache, opts ...ObserverOption) *Observer {
	cfg := &observerConfig{
		logger:         slog.Default(),
		confirmTimeout: 1500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Observer{
		provider:       provider,
		cache:          cache,
		subs:           make(map[uint64]func(State)),
		logger:         cfg.logger.With("component", "identity_observer"),
		confirmTimeout: cfg.confirmTimeout,
	}
}

// Start seeds the optimistic state from the cache, subscribes to the
// provider, and arms the confirmation fallback timer.
func (o *Observer) Start() {
	o.mu.Lock()
	if optimistic := o.cache.OptimisticID(); optimistic != "" {
		o.state = State{Phase: PhaseOptimistic, OptimisticID: optimistic}
	} else {
		o.state = State{Phase: PhaseUnknown}
	}
	o.timer = time.AfterFunc(o.confirmTimeout, o.onTimeout)
	o.mu.Unlock()

	o.unsub = o.provider.Observe(o.onProviderAnswer)
}

// State returns the current identity knowledge.
func (o *Observer) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Subscribe registers fn to receive every state change.
// Returns an unsubscribe function.
func (o *Observer) Subscribe(fn func(State)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Close stops observing the provider.
func (o *Observer) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
	}
	unsub := o.unsub
	o.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Confirm applies an identity established outside the passive observation
// path, such as an interactive sign-in or sign-out. Pass nil to confirm
// that no identity exists.
func (o *Observer) Confirm(ident *Identity) {
	o.confirm(ident)
}

// onProviderAnswer handles a provider confirmation. Errors fail toward
// guest: they confirm the absence of an identity rather than leaving the
// session hanging in the optimistic state.
func (o *Observer) onProviderAnswer(ident *Identity, err error) {
	if err != nil {
		o.logger.Warn("identity provider error, treating as signed out",
			"error", err)
		ident = nil
	}
	o.confirm(ident)
}

// onTimeout fires when the provider has not answered in time.
func (o *Observer) onTimeout() {
	o.mu.RLock()
	alreadyConfirmed := o.confirmedOnce
	o.mu.RUnlock()
	if alreadyConfirmed {
		return
	}

	o.logger.Warn("identity confirmation timed out, assuming signed out",
		"timeout", o.confirmTimeout)
	o.confirm(nil)
}

// confirm moves the observer into (or within) the confirmed phase and
// updates the optimistic cache to match.
func (o *Observer) confirm(ident *Identity) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.confirmedOnce = true
	if o.timer != nil {
		o.timer.Stop()
	}
	o.state = State{Phase: PhaseConfirmed, Identity: ident}
	o.mu.Unlock()

	if ident != nil {
		if err := o.cache.Remember(ident); err != nil {
			o.logger.Warn("failed to cache identity marker", "error", err)
		}
	} else {
		if err := o.cache.Forget(); err != nil {
			o.logger.Warn("failed to clear identity marker", "error", err)
		}
	}

	o.notify()
}

// notify fans the current state out to subscribers outside the lock.
func (o *Observer) notify() {
	o.mu.RLock()
	state := o.state
	fns := make([]func(State), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.mu.RUnlock()

	for _, fn := range fns {
		fn(state)
	}
}
