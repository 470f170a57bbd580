package wire

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for channel frames.
// Configured for deterministic encoding so equal values hash equally.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for channel frames.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient for forward compatibility. Untyped maps decode with string
	// keys to mirror JSON-shaped resource data.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		DefaultMapType:    reflect.TypeOf(map[string]any(nil)),
		IntDec:            cbor.IntDecConvertSigned,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// NewMessage builds a frame of the given kind with payload encoded in place.
func NewMessage(kind Kind, id uint32, payload any) (*Message, error) {
	msg := &Message{Kind: kind, ID: id}
	if payload != nil {
		raw, err := Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// Encode validates and encodes a frame.
func Encode(msg *Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return Marshal(msg)
}

// Decode decodes and validates a frame.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return &msg, nil
}

// EncodeAck encodes the answer to request id. A non-nil err is carried as
// the error string and the payload is dropped.
func EncodeAck(id uint32, payload any, err error) ([]byte, error) {
	if err != nil {
		return Encode(&Message{Kind: KindAck, ID: id, Error: err.Error()})
	}
	msg, encErr := NewMessage(KindAck, id, payload)
	if encErr != nil {
		return nil, encErr
	}
	return Encode(msg)
}

// EncodePush encodes unsolicited data for a resource.
func EncodePush(p *Push) ([]byte, error) {
	if p.URL == "" {
		return nil, ErrMissingURL
	}
	msg, err := NewMessage(KindStream, PushMessageID, p)
	if err != nil {
		return nil, err
	}
	return Encode(msg)
}

// Clone creates a deep copy of v by re-encoding.
// Useful for handing data to callers without shared references.
func Clone[T any](v T) (T, error) {
	var result T
	data, err := Marshal(v)
	if err != nil {
		return result, err
	}
	err = Unmarshal(data, &result)
	return result, err
}
