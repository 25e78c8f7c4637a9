// Package catalog is a read-only client for the upstream title catalog.
// It searches and fetches title metadata so the browsing surface has
// something to pin user data to. All calls are rate limited; the catalog
// provider throttles aggressively and a burst of poster lookups must not
// take the whole session down.
package catalog
