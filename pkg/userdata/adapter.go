package userdata

import (
	"context"
)

// Adapter defines the contract for user-data persistence backends.
// One contract serves both session kinds: the guest store binds an adapter
// keyed by the anonymous device id, the account store binds one keyed by
// the account id. Implementations must be safe for concurrent use.
type Adapter interface {
	// Load retrieves the record for an identity.
	// Returns (nil, nil) if no record exists.
	// Returns (nil, err) on backend errors.
	Load(ctx context.Context, identityID string) (*Record, error)

	// Save persists the full record for an identity, overwriting any
	// previous document. Every save transmits a complete snapshot, so
	// last-write-wins at the backend is acceptable.
	Save(ctx context.Context, identityID string, rec *Record) error

	// Delete removes the persisted record for an identity.
	// Should not return an error if no record exists.
	Delete(ctx context.Context, identityID string) error

	// Close releases any resources held by the adapter.
	Close() error
}

// ErrAdapterClosed is returned when operations are attempted on a closed
// adapter.
type ErrAdapterClosed struct{}

func (e ErrAdapterClosed) Error() string {
	return "userdata adapter is closed"
}
