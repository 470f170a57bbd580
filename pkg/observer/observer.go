package observer

import (
	"github.com/oklog/ulid/v2"
)

// Fields is one record of resource data.
type Fields = map[string]any

// Observer is the part shared by records and collections.
//
// Callbacks run one at a time. An observer added to a resource from inside
// a callback receives the cached snapshot after that callback returns.
type Observer interface {
	// ClientID identifies this observer among the clients of a resource.
	ClientID() string

	// URL is the resource identifier the observer is interested in.
	URL() string

	// Precache reports whether a stale cached copy may be applied before
	// the upstream confirms it.
	Precache() bool
}

// Record is a single-record observer.
type Record interface {
	Observer

	// Parse filters incoming data. Returning empty fields vetoes the update.
	Parse(data any) (Fields, error)

	// Reset replaces all fields.
	Reset(fields Fields)
}

// Collection is an observer holding an ordered list of records.
type Collection interface {
	Observer

	// Parse turns incoming data into records.
	Parse(data any) ([]Fields, error)

	// IDAttribute names the field carrying a record's identity.
	IDAttribute() string

	// Members returns the current members in order.
	Members() []Member

	// Reset replaces the member list.
	Reset(records []Fields)

	// Synced is signalled once after every member was set in place.
	Synced(records []Fields)
}

// Member is one element of a Collection.
type Member interface {
	// ID returns the member identity.
	ID() any

	// Parse filters an incoming record for this member.
	Parse(fields Fields) Fields

	// Set merges fields into the member.
	Set(fields Fields)
}

// Event names a change reported to a watcher.
type Event string

const (
	EventReset Event = "reset"
	EventSync  Event = "sync"
	EventSet   Event = "set"
)

// NewClientID returns a fresh, lexically sortable client id.
func NewClientID(prefix string) string {
	return prefix + ulid.Make().String()
}
