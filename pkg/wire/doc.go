// Package wire defines the CBOR wire format of the streaming channel.
//
// Every frame is a single CBOR map with integer keys:
//
//	{
//	  1: kind,     // uint8: 1=stream, 2=unstream, 3=sync, 4=ack
//	  2: id,       // uint32 correlation id, 0 for unsolicited pushes
//	  3: error,    // string, acks only, absent on success
//	  4: payload   // kind-specific CBOR value
//	}
//
// Requests (stream, unstream, sync) carry a non-zero id and are answered by
// exactly one ack with the same id. The upstream may also send a stream frame
// with id 0; that is a push of new data for a subscribed resource.
//
// # Payload values
//
// Resource data is schemaless. The decoder produces map[string]any for maps
// and int64 for integers so that callers see the same shapes regardless of
// which side encoded the value.
package wire
