// Package interaction implements the pending-call ledger of the streaming
// channel.
//
// Every outbound request (stream, unstream, sync) is tagged with a fresh
// message id and parked until the matching ack arrives. A call resolves
// exactly once: by its ack, by the request timeout, by context
// cancellation, or by FailAll when the channel goes away.
//
// # Usage
//
//	client := interaction.NewClient(nil)
//	client.SetPushHandler(func(p *wire.Push) { ... })
//
//	// once the channel is up
//	client.Attach(conn)
//	resp, err := client.Stream(ctx, "/users/1", cachedHash)
//
//	// every inbound frame
//	_ = client.HandleFrame(data)
//
//	// on connection loss
//	client.FailAll(interaction.ErrDisconnected)
//	client.Detach()
package interaction
