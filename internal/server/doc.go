// Package server exposes the session core over HTTP.
//
// The REST surface under /api serves session state, sign-in and sign-out,
// user-data mutations, and catalog lookups. A WebSocket endpoint at /ws
// pushes a fresh snapshot whenever the active store's data or the session
// mode changes, so browsing surfaces never poll.
//
// All user-data writes go through the active store and return the updated
// snapshot; persistence failures never surface as HTTP errors, only as the
// snapshot's syncStatus.
package server
