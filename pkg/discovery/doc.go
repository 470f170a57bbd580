// Package discovery finds channel upstreams on the local network with
// mDNS/DNS-SD.
//
// Upstreams advertise the _streamio._tcp service. The instance name is
// free-form and user-facing. TXT records carry what a client needs to
// build the WebSocket URL:
//
//	path   WebSocket path, defaults to "/"
//	proto  channel subprotocol, e.g. "streamio/1"
//	tls    "1" when the endpoint expects wss://
//	id     stable upstream identifier (optional)
//
// Clients use Resolve to pick the first compatible upstream when no URL
// is configured.
package discovery
