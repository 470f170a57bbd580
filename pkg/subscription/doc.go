// Package subscription keeps local copies of remote resources in sync.
//
// A Registry maps resource identifiers to subscriptions. Observers attach
// with Add and detach with Remove; all observers of one resource share a
// single subscription, a single cached snapshot and a single upstream
// stream.
//
// # Fetch cycle
//
// Whenever a subscription needs data (first observer attached while
// connected, or reconnection) the registry runs one fetch cycle:
//
//  1. fetch-cache: read the cache store. If the stored copy belongs to the
//     current user and precache is enabled, apply it right away and offer
//     its hash to the upstream.
//  2. await-confirmation: one stream round trip, bounded by FetchTimeout.
//  3. reconcile: if the upstream confirmed the offered hash the stored copy
//     stays authoritative (its expiry is refreshed when less than half of
//     it remains). Otherwise the response data is persisted and applied.
//  4. done.
//
// At most one cycle per resource and session is in flight. Concurrent
// callers of Fetch join the outstanding cycle.
//
// # Reconciliation
//
// Records are reset. Collections are reset on their first update, when the
// member count changes or when member identities differ in order; otherwise
// every member is updated in place and the collection is signalled once.
//
// # Grace period
//
// When the last observer of a resource detaches, the subscription lingers
// for GracePeriod. Re-attaching within that window reuses the cached
// snapshot without a round trip. Otherwise an unstream is sent and the
// subscription is deleted.
//
// # Connection loss
//
// Disconnected clears every in-memory snapshot, cancels release timers and
// retries, and fails every pending call. Connected runs a fetch cycle for
// every subscription that is still registered.
package subscription
