// Package store defines the persistent cache used by the subscription
// registry and ships two implementations.
//
// A cache entry holds the last authoritative snapshot of one resource
// together with its content hash, the user it was fetched for and an
// absolute expiry. Writes are optimistic: every Put supplies the revision
// the caller last saw and the store rejects it with ErrRevisionConflict when
// another writer got there first.
//
// MemoryStore keeps entries in process memory and is meant for tests and
// short-lived clients. FileStore keeps one zstd-compressed file per entry in
// a directory and survives restarts. Both delete expired entries once during
// Initialize; Get never filters on expiry.
package store
