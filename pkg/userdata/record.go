package userdata

import (
	"time"
)

// SyncStatus reports the persistence state of a record.
// It is observability only and never gates correctness: the in-memory
// record stays the source of truth even while persistence is degraded.
type SyncStatus string

const (
	// StatusSynced means the last persistence attempt succeeded.
	StatusSynced SyncStatus = "synced"

	// StatusSyncing means a persistence attempt is in flight.
	StatusSyncing SyncStatus = "syncing"

	// StatusOffline means the last persistence attempt failed.
	StatusOffline SyncStatus = "offline"
)

// ContentRef is a minimal reference to a catalog title. The catalog service
// owns the full metadata; a ContentRef carries just enough to render a tile
// without a catalog round trip.
type ContentRef struct {
	// ID is the catalog title identifier.
	ID string `json:"id"`

	// Title is the display title at the time the reference was created.
	Title string `json:"title,omitempty"`

	// MediaType is "movie" or "tv".
	MediaType string `json:"media_type,omitempty"`

	// PosterPath is the catalog poster image path.
	PosterPath string `json:"poster_path,omitempty"`

	// AddedAt is when the reference entered this record.
	AddedAt time.Time `json:"added_at"`
}

// List is a user-created collection of titles.
type List struct {
	// ID is the list identifier, unique within a record.
	ID string `json:"id"`

	// Name is the user-chosen list name.
	Name string `json:"name"`

	// Emoji is an optional decoration shown next to the name.
	Emoji string `json:"emoji,omitempty"`

	// Color is an optional accent color for the list tile.
	Color string `json:"color,omitempty"`

	// Items are the titles in the list, in insertion order.
	Items []ContentRef `json:"items"`

	// CreatedAt is when the list was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the list was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Preferences holds playback preferences.
type Preferences struct {
	// AutoMute starts trailers muted.
	AutoMute bool `json:"auto_mute"`

	// DefaultVolume is the initial player volume, 0-100.
	DefaultVolume int `json:"default_volume"`

	// ChildSafety filters mature titles. Always false for guest
	// identities; enforced server-side for accounts.
	ChildSafety bool `json:"child_safety"`
}

// PreferencesPatch is a partial update to Preferences. Nil fields are
// left unchanged.
type PreferencesPatch struct {
	AutoMute      *bool `json:"auto_mute,omitempty"`
	DefaultVolume *int  `json:"default_volume,omitempty"`
	ChildSafety   *bool `json:"child_safety,omitempty"`
}

// Record is the complete user-data document for one identity.
// Exactly one Store owns a given Record at a time.
type Record struct {
	// IdentityID is the anonymous device id or account id.
	// Empty only before the owning store is bound.
	IdentityID string `json:"identity_id"`

	// Watchlist is the default watchlist, insertion order significant,
	// unique by content id.
	Watchlist []ContentRef `json:"watchlist"`

	// Liked and Hidden are rating sets. A content id never appears in
	// both at once.
	Liked  []ContentRef `json:"liked"`
	Hidden []ContentRef `json:"hidden"`

	// Lists are the user-created lists, ids unique within the record.
	Lists []List `json:"lists"`

	// LastActiveAt is the last mutation time.
	LastActiveAt time.Time `json:"last_active_at"`

	// SyncStatus reports persistence health. See SyncStatus.
	SyncStatus SyncStatus `json:"sync_status"`

	// Preferences holds playback preferences.
	Preferences Preferences `json:"preferences"`
}

// DefaultPreferences returns the preferences a fresh record starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		AutoMute:      true,
		DefaultVolume: 70,
		ChildSafety:   false,
	}
}

// NewRecord returns an empty record bound to the given identity.
func NewRecord(identityID string) *Record {
	return &Record{
		IdentityID:  identityID,
		SyncStatus:  StatusSynced,
		Preferences: DefaultPreferences(),
	}
}

// Clone returns a deep copy of the record. Stores hand out clones so
// callers never alias internal slices.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	out := *r
	out.Watchlist = cloneRefs(r.Watchlist)
	out.Liked = cloneRefs(r.Liked)
	out.Hidden = cloneRefs(r.Hidden)

	if r.Lists != nil {
		out.Lists = make([]List, len(r.Lists))
		for i, l := range r.Lists {
			cl := l
			cl.Items = cloneRefs(l.Items)
			out.Lists[i] = cl
		}
	}

	return &out
}

func cloneRefs(refs []ContentRef) []ContentRef {
	if refs == nil {
		return nil
	}
	out := make([]ContentRef, len(refs))
	copy(out, refs)
	return out
}

// containsRef reports whether refs holds the given content id.
func containsRef(refs []ContentRef, id string) bool {
	for _, ref := range refs {
		if ref.ID == id {
			return true
		}
	}
	return false
}

// removeRef returns refs without the given content id, preserving order,
// and whether anything was removed.
func removeRef(refs []ContentRef, id string) ([]ContentRef, bool) {
	for i, ref := range refs {
		if ref.ID == id {
			return append(refs[:i:i], refs[i+1:]...), true
		}
	}
	return refs, false
}
