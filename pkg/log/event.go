package log

import (
	"time"

	"github.com/streamio/streamio-go/pkg/wire"
)

// DefaultMaxFrameBytes limits how much of a raw frame is kept.
const DefaultMaxFrameBytes = 4096

// Event is one captured occurrence on a channel. Exactly one of the
// type-specific fields is set.
type Event struct {
	Timestamp    time.Time `cbor:"1,keyasint"`
	ConnectionID string    `cbor:"2,keyasint"`
	Direction    Direction `cbor:"3,keyasint"`
	Layer        Layer     `cbor:"4,keyasint"`
	Category     Category  `cbor:"5,keyasint"`
	RemoteAddr   string    `cbor:"6,keyasint,omitempty"`
	UserID       string    `cbor:"7,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Control     *ControlEvent     `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEvent       `cbor:"14,keyasint,omitempty"`
}

// Direction indicates message flow.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates where an event was captured.
type Layer uint8

const (
	// LayerTransport sees raw WebSocket messages.
	LayerTransport Layer = 0

	// LayerWire sees decoded frames.
	LayerWire Layer = 1

	// LayerService sees connection and subscription lifecycle.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies an event.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryControl Category = 1
	CategoryState   Category = 2
	CategoryError   Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent is a raw channel message.
type FrameEvent struct {
	// Size is the full message size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data holds at most the configured number of leading bytes.
	Data []byte `cbor:"2,keyasint,omitempty"`

	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// NewFrameEvent copies up to maxBytes of data. A non-positive maxBytes
// keeps only the size.
func NewFrameEvent(data []byte, maxBytes int) *FrameEvent {
	fe := &FrameEvent{Size: len(data)}
	if maxBytes <= 0 {
		fe.Truncated = len(data) > 0
		return fe
	}
	n := min(len(data), maxBytes)
	fe.Data = append([]byte(nil), data[:n]...)
	fe.Truncated = n < len(data)
	return fe
}

// MessageEvent is a decoded frame.
type MessageEvent struct {
	Kind    wire.Kind `cbor:"1,keyasint"`
	ID      uint32    `cbor:"2,keyasint"`
	URL     string    `cbor:"3,keyasint,omitempty"`
	Hash    string    `cbor:"4,keyasint,omitempty"`
	Method  string    `cbor:"5,keyasint,omitempty"`
	Error   string    `cbor:"6,keyasint,omitempty"`
	Payload any       `cbor:"7,keyasint,omitempty"`

	// Latency is the round-trip time of the request an ack answers.
	Latency *time.Duration `cbor:"8,keyasint,omitempty"`
}

// NewMessageEvent summarizes msg. Request fields are lifted out of the
// typed payload, and Payload keeps the resource data the frame carries.
func NewMessageEvent(msg *wire.Message) *MessageEvent {
	me := &MessageEvent{Kind: msg.Kind, ID: msg.ID, Error: msg.Error}
	if len(msg.Payload) == 0 {
		return me
	}

	switch {
	case msg.IsPush():
		var p wire.Push
		if msg.DecodePayload(&p) == nil {
			me.URL, me.Hash, me.Payload = p.URL, p.Hash, p.Data
		}
	case msg.Kind == wire.KindStream:
		var r wire.StreamRequest
		if msg.DecodePayload(&r) == nil {
			me.URL, me.Hash = r.URL, r.Hash
		}
	case msg.Kind == wire.KindUnstream:
		var r wire.UnstreamRequest
		if msg.DecodePayload(&r) == nil {
			me.URL = r.URL
		}
	case msg.Kind == wire.KindSync:
		var r wire.SyncRequest
		if msg.DecodePayload(&r) == nil {
			me.URL, me.Method, me.Payload = r.URL, r.Method, r.Data
			if r.Emit != "" {
				me.Method = r.Method + ":" + r.Emit
			}
		}
	case msg.Kind == wire.KindAck:
		// Sync results are plain data. Stream results are keyed by
		// integers and only decode into their struct.
		var payload any
		if msg.DecodePayload(&payload) == nil {
			me.Payload = payload
			break
		}
		var r wire.StreamResponse
		if msg.DecodePayload(&r) == nil {
			me.Hash, me.Payload = r.Hash, r.Data
		}
	}
	return me
}

// StateChangeEvent is a lifecycle transition.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`

	// URL names the resource for subscription changes.
	URL string `cbor:"5,keyasint,omitempty"`
}

// StateEntity names what changed state.
type StateEntity uint8

const (
	StateEntityConnection   StateEntity = 0
	StateEntitySubscription StateEntity = 1
	StateEntityFetch        StateEntity = 2
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	case StateEntityFetch:
		return "FETCH"
	default:
		return "UNKNOWN"
	}
}

// ControlEvent is a WebSocket control message.
type ControlEvent struct {
	Type ControlType `cbor:"1,keyasint"`

	// CloseCode is the WebSocket close status for close messages.
	CloseCode *int `cbor:"2,keyasint,omitempty"`
}

// ControlType is the kind of control message.
type ControlType uint8

const (
	ControlPing  ControlType = 0
	ControlPong  ControlType = 1
	ControlClose ControlType = 2
)

// String returns the control type name.
func (c ControlType) String() string {
	switch c {
	case ControlPing:
		return "PING"
	case ControlPong:
		return "PONG"
	case ControlClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEvent is a failure at any layer.
type ErrorEvent struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context names the operation that failed.
	Context string `cbor:"3,keyasint,omitempty"`
}
