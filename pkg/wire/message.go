package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// PushMessageID is the id carried by unsolicited upstream pushes.
const PushMessageID uint32 = 0

// Sync methods understood by the upstream.
const (
	MethodCreate = "create"
	MethodRead   = "read"
	MethodUpdate = "update"
	MethodPatch  = "patch"
	MethodDelete = "delete"
	MethodEmit   = "emit"
)

// Message validation errors.
var (
	ErrInvalidKind = errors.New("invalid message kind")
	ErrMissingID   = errors.New("request message requires a non-zero id")
	ErrMissingURL  = errors.New("message requires a url")
)

// Message is one frame on the channel.
type Message struct {
	Kind    Kind            `cbor:"1,keyasint"`
	ID      uint32          `cbor:"2,keyasint,omitempty"`
	Error   string          `cbor:"3,keyasint,omitempty"`
	Payload cbor.RawMessage `cbor:"4,keyasint,omitempty"`
}

// Validate checks structural invariants of the frame.
func (m *Message) Validate() error {
	if !m.Kind.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, m.Kind)
	}
	if m.ID == PushMessageID && m.Kind != KindStream {
		return fmt.Errorf("%w: kind %s", ErrMissingID, m.Kind)
	}
	return nil
}

// IsPush returns true for unsolicited upstream data.
func (m *Message) IsPush() bool {
	return m.Kind == KindStream && m.ID == PushMessageID
}

// DecodePayload decodes the payload into v. An absent payload leaves v
// untouched.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	if err := Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Kind, err)
	}
	return nil
}

// StreamRequest asks the upstream for a resource. Hash is the fingerprint of
// the locally cached copy, if any.
type StreamRequest struct {
	URL  string `cbor:"1,keyasint"`
	Hash string `cbor:"2,keyasint,omitempty"`
}

// StreamResponse is the ack payload of a stream request. When Hash equals
// the request hash the upstream may omit Data.
type StreamResponse struct {
	Hash string `cbor:"1,keyasint,omitempty"`
	Data any    `cbor:"2,keyasint,omitempty"`
}

// Push is new data for a resource sent without a request.
type Push struct {
	URL  string `cbor:"1,keyasint"`
	Hash string `cbor:"2,keyasint,omitempty"`
	Data any    `cbor:"3,keyasint,omitempty"`
}

// UnstreamRequest releases a resource.
type UnstreamRequest struct {
	URL string `cbor:"1,keyasint"`
}

// SyncRequest carries a write operation. Emit names the custom method when
// Method is MethodEmit.
type SyncRequest struct {
	Method   string `cbor:"1,keyasint"`
	URL      string `cbor:"2,keyasint"`
	ClientID string `cbor:"3,keyasint,omitempty"`
	Data     any    `cbor:"4,keyasint,omitempty"`
	Emit     string `cbor:"5,keyasint,omitempty"`
}
