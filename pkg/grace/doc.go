// Package grace schedules cancellable deferred tasks keyed by resource.
//
// The subscription registry arms one task per resource when its last
// observer detaches and cancels it when an observer re-attaches within the
// period. The same scheduler drives fetch retries.
//
// # Replacement
//
// Scheduling a key that already has a pending task replaces it. A replaced
// or cancelled task never fires, even if its timer was already due.
//
// # Connection Loss
//
// Tasks are not persisted. CancelAll drops every pending task without
// firing any of them.
package grace
