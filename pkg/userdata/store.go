package userdata

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scope identifies which kind of identity a store serves.
type Scope int

const (
	// ScopeGuest serves an anonymous device identity backed by local
	// persistence. Guest records never enable child safety.
	ScopeGuest Scope = iota

	// ScopeAccount serves a confirmed account identity backed by remote
	// persistence.
	ScopeAccount
)

// String returns the scope name for logging.
func (s Scope) String() string {
	if s == ScopeGuest {
		return "guest"
	}
	return "account"
}

// IdentityMismatchError is returned when a load or sync targets a different
// identity than the one the store is bound to. The operation is a no-op;
// the error exists for diagnostics only and is never surfaced to users.
type IdentityMismatchError struct {
	Bound     string
	Requested string
}

func (e IdentityMismatchError) Error() string {
	return "userdata: store bound to " + e.Bound + ", rejected data for " + e.Requested
}

// ListPatch is a partial update to a list's attributes. Nil fields are
// left unchanged.
type ListPatch struct {
	Name  *string `json:"name,omitempty"`
	Emoji *string `json:"emoji,omitempty"`
	Color *string `json:"color,omitempty"`
}

// Store holds one identity's user-data record in memory and persists it
// through its bound Adapter. One Store type serves both session kinds;
// guest and account instances differ only in Scope and Adapter.
//
// Every mutation updates the in-memory record synchronously, then persists
// a full snapshot in the background. Persistence failures never propagate
// to callers: the record's SyncStatus flips to offline and memory remains
// the source of truth.
type Store struct {
	mu sync.RWMutex

	scope   Scope
	adapter Adapter
	rec     *Record

	// pendingSaves counts in-flight background persists. The record only
	// leaves the syncing status once the count returns to zero.
	pendingSaves int

	subs   map[uint64]func(*Record)
	nextID uint64

	logger      *slog.Logger
	saveTimeout time.Duration
	saveWG      sync.WaitGroup
	onSaveError func()
}

// StoreOption configures Store behavior.
type StoreOption func(*storeConfig)

type storeConfig struct {
	logger      *slog.Logger
	saveTimeout time.Duration
	onSaveError func()
}

// WithStoreLogger sets the logger used for persistence diagnostics.
// Default: slog.Default().
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(c *storeConfig) {
		c.logger = logger
	}
}

// WithSaveTimeout bounds each background persistence call.
// Default: 5 seconds.
func WithSaveTimeout(d time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.saveTimeout = d
	}
}

// WithSaveFailureHook registers fn to run after each failed background
// persist, for instrumentation. fn must be safe for concurrent use.
func WithSaveFailureHook(fn func()) StoreOption {
	return func(c *storeConfig) {
		c.onSaveError = fn
	}
}

// NewStore creates a store for the given scope bound to the given adapter.
// The store starts unbound; Bind or LoadData attaches it to an identity.
func NewStore(scope Scope, adapter Adapter, opts ...StoreOption) *Store {
	cfg := &storeConfig{
		logger:      slog.Default(),
		saveTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Store{
		scope:       scope,
		adapter:     adapter,
		rec:         NewRecord(""),
		subs:        make(map[uint64]func(*Record)),
		logger:      cfg.logger.With("component", "userdata_store", "scope", scope.String()),
		saveTimeout: cfg.saveTimeout,
		onSaveError: cfg.onSaveError,
	}
}

// Scope returns the store's scope.
func (s *Store) Scope() Scope {
	return s.scope
}

// IdentityID returns the identity the store is currently bound to.
// Empty when unbound.
func (s *Store) IdentityID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.IdentityID
}

// Snapshot returns a deep copy of the current record.
func (s *Store) Snapshot() *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Clone()
}

// Subscribe registers fn to receive a snapshot after every record change.
// Returns an unsubscribe function. Callbacks run outside the store lock
// and must not block for long.
func (s *Store) Subscribe(fn func(*Record)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Bind attaches the store to an identity. If the store is already bound to
// a different identity, the previous record is discarded and replaced with
// an empty record for the new identity.
func (s *Store) Bind(identityID string) {
	s.mu.Lock()
	if s.rec.IdentityID == identityID {
		s.mu.Unlock()
		return
	}
	s.rec = NewRecord(identityID)
	s.mu.Unlock()

	s.notify()
}

// AddToWatchlist appends content to the watchlist. Adding an id that is
// already present is a no-op.
func (s *Store) AddToWatchlist(ctx context.Context, content ContentRef) {
	s.mutate(ctx, func(rec *Record) bool {
		if containsRef(rec.Watchlist, content.ID) {
			return false
		}
		if content.AddedAt.IsZero() {
			content.AddedAt = time.Now()
		}
		rec.Watchlist = append(rec.Watchlist, content)
		return true
	})
}

// RemoveFromWatchlist removes content from the watchlist. Removing an
// absent id is a no-op.
func (s *Store) RemoveFromWatchlist(ctx context.Context, contentID string) {
	s.mutate(ctx, func(rec *Record) bool {
		var removed bool
		rec.Watchlist, removed = removeRef(rec.Watchlist, contentID)
		return removed
	})
}

// AddLiked marks content as liked. If the id is currently hidden it is
// removed from the hidden set in the same operation: a title is never both
// liked and hidden.
func (s *Store) AddLiked(ctx context.Context, content ContentRef) {
	s.mutate(ctx, func(rec *Record) bool {
		rec.Hidden, _ = removeRef(rec.Hidden, content.ID)
		if containsRef(rec.Liked, content.ID) {
			return false
		}
		if content.AddedAt.IsZero() {
			content.AddedAt = time.Now()
		}
		rec.Liked = append(rec.Liked, content)
		return true
	})
}

// AddHidden marks content as hidden, removing it from the liked set in the
// same operation.
func (s *Store) AddHidden(ctx context.Context, content ContentRef) {
	s.mutate(ctx, func(rec *Record) bool {
		rec.Liked, _ = removeRef(rec.Liked, content.ID)
		if containsRef(rec.Hidden, content.ID) {
			return false
		}
		if content.AddedAt.IsZero() {
			content.AddedAt = time.Now()
		}
		rec.Hidden = append(rec.Hidden, content)
		return true
	})
}

// RemoveLiked clears a like. Removing an absent id is a no-op.
func (s *Store) RemoveLiked(ctx context.Context, contentID string) {
	s.mutate(ctx, func(rec *Record) bool {
		var removed bool
		rec.Liked, removed = removeRef(rec.Liked, contentID)
		return removed
	})
}

// RemoveHidden unhides a title. Removing an absent id is a no-op.
func (s *Store) RemoveHidden(ctx context.Context, contentID string) {
	s.mutate(ctx, func(rec *Record) bool {
		var removed bool
		rec.Hidden, removed = removeRef(rec.Hidden, contentID)
		return removed
	})
}

// CreateList creates a new custom list and returns its id.
func (s *Store) CreateList(ctx context.Context, name, emoji, color string) string {
	id := uuid.NewString()
	now := time.Now()

	s.mutate(ctx, func(rec *Record) bool {
		rec.Lists = append(rec.Lists, List{
			ID:        id,
			Name:      name,
			Emoji:     emoji,
			Color:     color,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return true
	})

	return id
}

// AddToList appends content to a custom list. Unknown list ids and
// duplicate content ids are silent no-ops.
func (s *Store) AddToList(ctx context.Context, listID string, content ContentRef) {
	s.mutate(ctx, func(rec *Record) bool {
		for i := range rec.Lists {
			if rec.Lists[i].ID != listID {
				continue
			}
			if containsRef(rec.Lists[i].Items, content.ID) {
				return false
			}
			if content.AddedAt.IsZero() {
				content.AddedAt = time.Now()
			}
			rec.Lists[i].Items = append(rec.Lists[i].Items, content)
			rec.Lists[i].UpdatedAt = time.Now()
			return true
		}
		s.logger.Debug("add to unknown list", "list_id", listID)
		return false
	})
}

// RemoveFromList removes content from a custom list. Unknown list ids and
// absent content ids are silent no-ops.
func (s *Store) RemoveFromList(ctx context.Context, listID, contentID string) {
	s.mutate(ctx, func(rec *Record) bool {
		for i := range rec.Lists {
			if rec.Lists[i].ID != listID {
				continue
			}
			var removed bool
			rec.Lists[i].Items, removed = removeRef(rec.Lists[i].Items, contentID)
			if removed {
				rec.Lists[i].UpdatedAt = time.Now()
			}
			return removed
		}
		return false
	})
}

// UpdateList applies a partial update to a list's attributes. Unknown list
// ids are silent no-ops.
func (s *Store) UpdateList(ctx context.Context, listID string, patch ListPatch) {
	s.mutate(ctx, func(rec *Record) bool {
		for i := range rec.Lists {
			if rec.Lists[i].ID != listID {
				continue
			}
			changed := false
			if patch.Name != nil && *patch.Name != rec.Lists[i].Name {
				rec.Lists[i].Name = *patch.Name
				changed = true
			}
			if patch.Emoji != nil && *patch.Emoji != rec.Lists[i].Emoji {
				rec.Lists[i].Emoji = *patch.Emoji
				changed = true
			}
			if patch.Color != nil && *patch.Color != rec.Lists[i].Color {
				rec.Lists[i].Color = *patch.Color
				changed = true
			}
			if changed {
				rec.Lists[i].UpdatedAt = time.Now()
			}
			return changed
		}
		s.logger.Debug("update unknown list", "list_id", listID)
		return false
	})
}

// DeleteList removes a custom list. Unknown list ids are silent no-ops.
func (s *Store) DeleteList(ctx context.Context, listID string) {
	s.mutate(ctx, func(rec *Record) bool {
		for i := range rec.Lists {
			if rec.Lists[i].ID == listID {
				rec.Lists = append(rec.Lists[:i:i], rec.Lists[i+1:]...)
				return true
			}
		}
		return false
	})
}

// UpdatePreferences shallow-merges the patch into the preferences.
// Guest stores ignore child-safety changes: the flag stays false.
func (s *Store) UpdatePreferences(ctx context.Context, patch PreferencesPatch) {
	s.mutate(ctx, func(rec *Record) bool {
		changed := false
		if patch.AutoMute != nil && *patch.AutoMute != rec.Preferences.AutoMute {
			rec.Preferences.AutoMute = *patch.AutoMute
			changed = true
		}
		if patch.DefaultVolume != nil && *patch.DefaultVolume != rec.Preferences.DefaultVolume {
			rec.Preferences.DefaultVolume = *patch.DefaultVolume
			changed = true
		}
		if patch.ChildSafety != nil && s.scope == ScopeAccount &&
			*patch.ChildSafety != rec.Preferences.ChildSafety {
			rec.Preferences.ChildSafety = *patch.ChildSafety
			changed = true
		}
		return changed
	})
}

// LoadData replaces the in-memory record with loaded data. If the store is
// already bound to a different identity than rec.IdentityID, the load is
// rejected so a stale async load can't clobber a newer session.
func (s *Store) LoadData(rec *Record) error {
	s.mu.Lock()
	if s.rec.IdentityID != "" && s.rec.IdentityID != rec.IdentityID {
		bound := s.rec.IdentityID
		s.mu.Unlock()
		s.logger.Debug("rejected load for mismatched identity",
			"bound", bound,
			"requested", rec.IdentityID)
		return IdentityMismatchError{Bound: bound, Requested: rec.IdentityID}
	}

	loaded := rec.Clone()
	if s.scope == ScopeGuest {
		loaded.Preferences.ChildSafety = false
	}
	loaded.SyncStatus = StatusSynced
	s.rec = loaded
	s.mu.Unlock()

	s.notify()
	return nil
}

// ClearLocalCache resets the in-memory record to empty defaults, keeping
// the identity binding. Persisted data is untouched.
func (s *Store) ClearLocalCache() {
	s.mu.Lock()
	s.rec = NewRecord(s.rec.IdentityID)
	s.mu.Unlock()

	s.notify()
}

// ClearAllData resets the record to empty defaults and deletes the
// persisted copy. The identity binding is preserved, so an in-flight sync
// keyed to the same identity doesn't treat the cleared state as foreign.
func (s *Store) ClearAllData(ctx context.Context) {
	s.mu.Lock()
	identityID := s.rec.IdentityID
	s.rec = NewRecord(identityID)
	s.mu.Unlock()

	s.notify()

	if identityID == "" {
		return
	}

	s.saveWG.Add(1)
	go func() {
		defer s.saveWG.Done()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.saveTimeout)
		defer cancel()

		if err := s.adapter.Delete(dctx, identityID); err != nil {
			s.logger.Warn("failed to delete persisted user data",
				"identity_id", identityID,
				"error", err)
		}
	}()
}

// Sync populates the record from the bound adapter. The load result only
// commits if the store is still bound to identityID when it arrives.
// A missing persisted record is not an error: the identity simply has no
// history yet.
func (s *Store) Sync(ctx context.Context, identityID string) error {
	s.mu.Lock()
	if s.rec.IdentityID != identityID {
		bound := s.rec.IdentityID
		s.mu.Unlock()
		return IdentityMismatchError{Bound: bound, Requested: identityID}
	}
	s.rec.SyncStatus = StatusSyncing
	s.mu.Unlock()
	s.notify()

	loaded, err := s.adapter.Load(ctx, identityID)
	if err != nil {
		s.logger.Warn("user data load failed",
			"identity_id", identityID,
			"error", err)
		s.setStatusIfBound(identityID, StatusOffline)
		return err
	}

	if loaded == nil {
		s.setStatusIfBound(identityID, StatusSynced)
		return nil
	}

	// Backends key by identity, so a loaded document belongs to the
	// requested identity regardless of what it claims.
	loaded.IdentityID = identityID
	return s.LoadData(loaded)
}

// Flush blocks until all in-flight background persists have completed.
// This is for tests and graceful shutdown.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.saveWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending persists and closes the adapter.
func (s *Store) Close(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	return s.adapter.Close()
}

// mutate applies fn to the record under the lock. If fn reports a change,
// the record is stamped, marked syncing, and a snapshot is persisted in
// the background.
func (s *Store) mutate(ctx context.Context, fn func(*Record) bool) {
	s.mu.Lock()
	if !fn(s.rec) {
		s.mu.Unlock()
		return
	}

	s.rec.LastActiveAt = time.Now()
	s.rec.SyncStatus = StatusSyncing
	s.pendingSaves++

	identityID := s.rec.IdentityID
	snapshot := s.rec.Clone()
	s.mu.Unlock()

	s.notify()

	s.saveWG.Add(1)
	go func() {
		defer s.saveWG.Done()
		s.persist(ctx, identityID, snapshot)
	}()
}

// persist saves a snapshot and updates SyncStatus from the outcome. If the
// store has been rebound to a different identity while the save was in
// flight, the result is discarded silently: the new identity's sync
// lifecycle owns the status field.
func (s *Store) persist(ctx context.Context, identityID string, snapshot *Record) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.saveTimeout)
	defer cancel()

	err := s.adapter.Save(sctx, identityID, snapshot)

	s.mu.Lock()
	s.pendingSaves--
	if s.rec.IdentityID != identityID {
		s.mu.Unlock()
		s.logger.Debug("discarded save result for stale identity",
			"saved_for", identityID)
		return
	}
	if s.pendingSaves > 0 {
		// Another save is still in flight; it will settle the status.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.rec.SyncStatus = StatusOffline
	} else {
		s.rec.SyncStatus = StatusSynced
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("user data save failed",
			"identity_id", identityID,
			"error", err)
		if s.onSaveError != nil {
			s.onSaveError()
		}
	}

	s.notify()
}

// setStatusIfBound updates SyncStatus only if the store is still bound to
// the given identity.
func (s *Store) setStatusIfBound(identityID string, status SyncStatus) {
	s.mu.Lock()
	if s.rec.IdentityID != identityID {
		s.mu.Unlock()
		return
	}
	s.rec.SyncStatus = status
	s.mu.Unlock()

	s.notify()
}

// notify fans a fresh snapshot out to subscribers.
// Uses copy-before-notify so callbacks never run under the store lock.
func (s *Store) notify() {
	s.mu.RLock()
	if len(s.subs) == 0 {
		s.mu.RUnlock()
		return
	}
	fns := make([]func(*Record), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	snapshot := s.rec.Clone()
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
