// Package userdata implements the per-identity user-data record and the
// reactive store that owns it.
//
// A Record holds everything reeldeck remembers about one identity: the
// watchlist, liked/hidden titles, custom lists, and playback preferences.
// Records are persisted through pluggable Adapter backends:
//
//	adapter := userdata.NewMemoryAdapter()
//	// or
//	adapter := userdata.NewSQLAdapter(db, userdata.WithSQLDialect(userdata.DialectSQLite))
//	// or
//	adapter := userdata.NewS3Adapter(s3Client, "reeldeck-userdata")
//
// A Store binds one Record to one Adapter. Mutations update memory
// synchronously and persist in the background; persistence failures are
// surfaced only through the record's SyncStatus, never as errors from the
// mutation itself. Guest and account sessions use the same Store type with
// different scopes and adapters.
package userdata
