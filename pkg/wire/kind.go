package wire

// Kind identifies the type of a frame.
type Kind uint8

const (
	// KindStream requests a resource snapshot (client to upstream) or pushes
	// one (upstream to client, id 0).
	KindStream Kind = 1

	// KindUnstream releases a resource subscription upstream.
	KindUnstream Kind = 2

	// KindSync carries a write operation for a resource.
	KindSync Kind = 3

	// KindAck answers a request.
	KindAck Kind = 4
)

// String returns the kind name as used on the channel.
func (k Kind) String() string {
	switch k {
	case KindStream:
		return "stream"
	case KindUnstream:
		return "unstream"
	case KindSync:
		return "sync"
	case KindAck:
		return "ack"
	default:
		return "unknown"
	}
}

// IsValid returns true if k is a known kind.
func (k Kind) IsValid() bool {
	return k >= KindStream && k <= KindAck
}

// IsRequest returns true for kinds that expect an ack.
func (k Kind) IsRequest() bool {
	return k >= KindStream && k <= KindSync
}
