// Package session decides which user-data store is active and keeps it
// synchronized with its backend.
//
// The Coordinator is a state machine over three modes: uninitialized,
// guest, and authenticated. It watches the identity observer and applies
// two hard rules: guest mode is never entered before the provider confirms
// the absence of an identity (a guest flash is worse than a brief loading
// state), and an optimistic identity enters authenticated mode immediately
// so a likely-signed-in user never sees guest data on reload.
//
// The SyncManager guarantees at most one in-flight synchronization per
// identity; concurrent requests await the existing run and share its
// result. Selectors give the presentation layer read access to whichever
// store is active without knowing the mode, and never trigger
// synchronization themselves.
package session
