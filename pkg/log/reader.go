package log

import (
	"errors"
	"io"
	"iter"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/streamio/streamio-go/pkg/wire"
)

// Filter selects events. Zero fields match everything.
type Filter struct {
	ConnectionID string
	Direction    *Direction
	Layer        *Layer
	Category     *Category

	// Kind matches message events of one frame kind.
	Kind *wire.Kind

	// URL matches message and state change events for one resource.
	URL string

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time
}

// Matches reports whether event passes every criterion.
func (f *Filter) Matches(event Event) bool {
	if f.ConnectionID != "" && event.ConnectionID != f.ConnectionID {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.Kind != nil && (event.Message == nil || event.Message.Kind != *f.Kind) {
		return false
	}
	if f.URL != "" && eventURL(event) != f.URL {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

func eventURL(event Event) string {
	switch {
	case event.Message != nil:
		return event.Message.URL
	case event.StateChange != nil:
		return event.StateChange.URL
	default:
		return ""
	}
}

// Reader streams events from a capture file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens path and reads every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and reads events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
// A file cut off mid-event ends with io.ErrUnexpectedEOF.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			return Event{}, err
		}
		if r.filter.Matches(event) {
			return event, nil
		}
	}
}

// Events iterates over the remaining matching events. Iteration stops at
// the end of the file; any other error is yielded once as the last pair.
func (r *Reader) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			event, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Event{}, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}
