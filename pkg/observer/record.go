package observer

import (
	"errors"
	"fmt"
	"maps"
	"sync"
)

// ErrUnexpectedShape is returned by Parse when data has the wrong form.
var ErrUnexpectedShape = errors.New("unexpected data shape")

// Options configures the reference observers.
type Options struct {
	// Precache allows applying a stale cached copy before confirmation.
	Precache bool

	// VersionAttribute names the monotonic version field, if any.
	VersionAttribute string

	// IDAttribute names the identity field of list items. Defaults to "id".
	IDAttribute string

	// Watch is called after every change.
	Watch func(Event)
}

// Doc is a single-record observer.
type Doc struct {
	mu sync.RWMutex

	url      string
	clientID string
	opts     Options
	fields   Fields
}

// NewDoc creates a document observer for url.
func NewDoc(url string, opts Options) *Doc {
	return &Doc{
		url:      url,
		clientID: NewClientID("doc"),
		opts:     opts,
		fields:   Fields{},
	}
}

func (d *Doc) ClientID() string { return d.clientID }
func (d *Doc) URL() string      { return d.url }
func (d *Doc) Precache() bool   { return d.opts.Precache }

// Parse accepts a map and applies the version guard.
func (d *Doc) Parse(data any) (Fields, error) {
	if data == nil {
		return Fields{}, nil
	}
	incoming, ok := toFields(data)
	if !ok {
		return nil, fmt.Errorf("%w: document %s got %T", ErrUnexpectedShape, d.url, data)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return VersionGuard(d.opts.VersionAttribute, d.fields, incoming), nil
}

// Reset replaces all fields.
func (d *Doc) Reset(fields Fields) {
	d.mu.Lock()
	d.fields = maps.Clone(fields)
	if d.fields == nil {
		d.fields = Fields{}
	}
	d.mu.Unlock()
	d.notify(EventReset)
}

// Set merges fields.
func (d *Doc) Set(fields Fields) {
	d.mu.Lock()
	maps.Copy(d.fields, fields)
	d.mu.Unlock()
	d.notify(EventSet)
}

// Get returns one field.
func (d *Doc) Get(key string) any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fields[key]
}

// Fields returns a copy of all fields.
func (d *Doc) Fields() Fields {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.fields)
}

// IncrementVersion bumps the local version before a write.
func (d *Doc) IncrementVersion() {
	d.mu.Lock()
	defer d.mu.Unlock()
	IncrementVersion(d.opts.VersionAttribute, d.fields)
}

func (d *Doc) notify(ev Event) {
	if d.opts.Watch != nil {
		d.opts.Watch(ev)
	}
}

// toFields accepts the map shapes produced by the decoders.
func toFields(data any) (Fields, bool) {
	switch m := data.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(Fields, len(m))
		for k, v := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = v
		}
		return out, true
	}
	return nil, false
}

var _ Record = (*Doc)(nil)
