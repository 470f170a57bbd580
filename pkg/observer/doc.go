// Package observer defines what the subscription registry needs from the
// objects it keeps up to date, and ships two reference implementations.
//
// An observer is either a Record (one set of fields) or a Collection (an
// ordered list of identified members). The registry never owns observers;
// it calls Parse to let the observer filter incoming data, then either
// resets it or, for collections whose identities are unchanged, sets every
// member in place and signals Synced once.
//
// # Version guard
//
// Observers that carry a monotonic version field reject stale data with
// VersionGuard: when the local version is greater than the incoming one
// the update is replaced by empty fields. Missing or non-numeric versions
// count as 0.
//
// # Reference implementations
//
// Doc is a single record, List a collection of Items. Both are safe for
// concurrent use and report changes through an optional watcher.
package observer
