package session

import "github.com/reeldeck/reeldeck/pkg/userdata"

// Selectors is a read-only view over whichever store is active. Callers
// get the current mode's data without knowing which store backs it.
// Reads never trigger synchronization; the Coordinator owns that.
type Selectors struct {
	coord *Coordinator
}

// NewSelectors creates selectors over a coordinator.
func NewSelectors(coord *Coordinator) *Selectors {
	return &Selectors{coord: coord}
}

// Mode returns the current session mode.
func (s *Selectors) Mode() Mode {
	return s.coord.Mode()
}

// ActiveStore returns the store mutations should go through, or nil while
// uninitialized.
func (s *Selectors) ActiveStore() *userdata.Store {
	return s.coord.ActiveStore()
}

// Loading reports whether no mode has been established yet.
func (s *Selectors) Loading() bool {
	return s.coord.Mode() == ModeUninitialized
}

// Snapshot returns a copy of the active store's record, or nil while
// uninitialized.
func (s *Selectors) Snapshot() *userdata.Record {
	store := s.coord.ActiveStore()
	if store == nil {
		return nil
	}
	return store.Snapshot()
}

// Watchlist returns the active watchlist, nil while uninitialized.
func (s *Selectors) Watchlist() []userdata.ContentRef {
	if rec := s.Snapshot(); rec != nil {
		return rec.Watchlist
	}
	return nil
}

// Liked returns the active liked collection, nil while uninitialized.
func (s *Selectors) Liked() []userdata.ContentRef {
	if rec := s.Snapshot(); rec != nil {
		return rec.Liked
	}
	return nil
}

// Hidden returns the active hidden collection, nil while uninitialized.
func (s *Selectors) Hidden() []userdata.ContentRef {
	if rec := s.Snapshot(); rec != nil {
		return rec.Hidden
	}
	return nil
}

// Lists returns the active custom lists, nil while uninitialized.
func (s *Selectors) Lists() []userdata.List {
	if rec := s.Snapshot(); rec != nil {
		return rec.Lists
	}
	return nil
}

// List returns the custom list with the given id and whether it exists.
func (s *Selectors) List(id string) (userdata.List, bool) {
	for _, l := range s.Lists() {
		if l.ID == id {
			return l, true
		}
	}
	return userdata.List{}, false
}

// Preferences returns the active preferences. The zero value is returned
// while uninitialized.
func (s *Selectors) Preferences() userdata.Preferences {
	if rec := s.Snapshot(); rec != nil {
		return rec.Preferences
	}
	return userdata.Preferences{}
}

// SyncStatus returns the active store's sync status, empty while
// uninitialized.
func (s *Selectors) SyncStatus() userdata.SyncStatus {
	if rec := s.Snapshot(); rec != nil {
		return rec.SyncStatus
	}
	return ""
}

// InWatchlist reports whether the content id is on the active watchlist.
func (s *Selectors) InWatchlist(contentID string) bool {
	return containsID(s.Watchlist(), contentID)
}

// IsLiked reports whether the content id is liked.
func (s *Selectors) IsLiked(contentID string) bool {
	return containsID(s.Liked(), contentID)
}

// IsHidden reports whether the content id is hidden.
func (s *Selectors) IsHidden(contentID string) bool {
	return containsID(s.Hidden(), contentID)
}

func containsID(refs []userdata.ContentRef, contentID string) bool {
	for _, r := range refs {
		if r.ID == contentID {
			return true
		}
	}
	return false
}
