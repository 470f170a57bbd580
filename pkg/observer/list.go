package observer

import (
	"fmt"
	"maps"
	"sync"
)

// DefaultIDAttribute is the identity field of list items unless configured.
const DefaultIDAttribute = "id"

// Item is one member of a List.
type Item struct {
	mu sync.RWMutex

	idAttr      string
	versionAttr string
	fields      Fields
}

func newItem(idAttr, versionAttr string, fields Fields) *Item {
	fields = maps.Clone(fields)
	if fields == nil {
		fields = Fields{}
	}
	return &Item{idAttr: idAttr, versionAttr: versionAttr, fields: fields}
}

// ID returns the identity field.
func (it *Item) ID() any {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.fields[it.idAttr]
}

// Parse applies the version guard.
func (it *Item) Parse(fields Fields) Fields {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return VersionGuard(it.versionAttr, it.fields, fields)
}

// Set merges fields.
func (it *Item) Set(fields Fields) {
	it.mu.Lock()
	defer it.mu.Unlock()
	maps.Copy(it.fields, fields)
}

// Get returns one field.
func (it *Item) Get(key string) any {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.fields[key]
}

// Fields returns a copy of all fields.
func (it *Item) Fields() Fields {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return maps.Clone(it.fields)
}

// IncrementVersion bumps the local version before a write.
func (it *Item) IncrementVersion() {
	it.mu.Lock()
	defer it.mu.Unlock()
	IncrementVersion(it.versionAttr, it.fields)
}

// List is a collection observer.
type List struct {
	mu sync.RWMutex

	url      string
	clientID string
	opts     Options
	items    []*Item

	resets int
	syncs  int
}

// NewList creates a list observer for url.
func NewList(url string, opts Options) *List {
	if opts.IDAttribute == "" {
		opts.IDAttribute = DefaultIDAttribute
	}
	return &List{
		url:      url,
		clientID: NewClientID("list"),
		opts:     opts,
	}
}

func (l *List) ClientID() string    { return l.clientID }
func (l *List) URL() string         { return l.url }
func (l *List) Precache() bool      { return l.opts.Precache }
func (l *List) IDAttribute() string { return l.opts.IDAttribute }

// Parse accepts a list of maps. nil is an empty list.
func (l *List) Parse(data any) ([]Fields, error) {
	switch rows := data.(type) {
	case nil:
		return []Fields{}, nil
	case []map[string]any:
		return rows, nil
	case []any:
		out := make([]Fields, 0, len(rows))
		for i, row := range rows {
			f, ok := toFields(row)
			if !ok {
				return nil, fmt.Errorf("%w: list %s row %d is %T", ErrUnexpectedShape, l.url, i, row)
			}
			out = append(out, f)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: list %s got %T", ErrUnexpectedShape, l.url, data)
}

// Members returns the items as Members.
func (l *List) Members() []Member {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Member, len(l.items))
	for i, it := range l.items {
		out[i] = it
	}
	return out
}

// Items returns the current items in order.
func (l *List) Items() []*Item {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Item(nil), l.items...)
}

// Len returns the number of items.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Reset replaces all items.
func (l *List) Reset(records []Fields) {
	items := make([]*Item, len(records))
	for i, rec := range records {
		items[i] = newItem(l.opts.IDAttribute, l.opts.VersionAttribute, rec)
	}

	l.mu.Lock()
	l.items = items
	l.resets++
	l.mu.Unlock()
	l.notify(EventReset)
}

// Synced records an in-place update of all items.
func (l *List) Synced(records []Fields) {
	l.mu.Lock()
	l.syncs++
	l.mu.Unlock()
	l.notify(EventSync)
}

// Resets returns how often the list was reset.
func (l *List) Resets() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.resets
}

// Syncs returns how often the list was updated in place.
func (l *List) Syncs() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.syncs
}

func (l *List) notify(ev Event) {
	if l.opts.Watch != nil {
		l.opts.Watch(ev)
	}
}

var (
	_ Collection = (*List)(nil)
	_ Member     = (*Item)(nil)
)
