package log

import (
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/streamio/streamio-go/pkg/wire"
)

// Events share the channel's CBOR modes so payloads keep their decoded
// shapes and timestamps keep nanosecond precision.

// EncodeEvent encodes an Event to CBOR bytes.
func EncodeEvent(event Event) ([]byte, error) {
	return wire.Marshal(event)
}

// DecodeEvent decodes CBOR bytes into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := wire.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder creates an event encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return wire.NewEncoder(w)
}

// NewDecoder creates an event decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return wire.NewDecoder(r)
}
