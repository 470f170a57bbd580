// Package transport carries channel frames over WebSocket.
//
// Every binary WebSocket message holds exactly one CBOR frame (see package
// wire). The client offers the "streamio/<major>" subprotocol and rejects
// an upstream that selects an incompatible one.
//
// # Liveness
//
// The client pings at a fixed interval and counts a ping as missed when no
// matching pong arrives within the pong timeout. After MaxMissedPongs
// consecutive misses the connection is closed, which ends Run and lets the
// connection manager redial. The worst-case detection delay is
//
//	PingInterval * MaxMissedPongs + PongTimeout
//
// # Capture
//
// When a capture logger is configured every message is recorded twice:
// once as raw bytes at the transport layer and once decoded at the wire
// layer.
package transport
