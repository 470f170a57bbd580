// Package service assembles a running channel client.
//
// Client ties the lower-level packages together:
//   - discovery resolves the upstream when no URL is configured
//   - transport dials it and reads frames
//   - connection redials with backoff after a loss
//   - interaction correlates requests with acks
//   - subscription keeps observers in sync through the cache store
//
// Example usage:
//
//	cfg, _ := config.Load("streamio.yaml")
//	clientConfig, _ := service.ConfigFrom(cfg)
//	client, err := service.NewClient(clientConfig)
//	if err != nil {
//		return err
//	}
//	if err := client.Start(ctx); err != nil {
//		return err
//	}
//	defer client.Stop()
//
//	doc := observer.NewDoc("/profile", observer.Options{})
//	_ = client.Registry().Add(doc, nil)
//
// # Connection Lifecycle
//
// The registry is told about every connect and disconnect. On connect it
// re-fetches every live subscription; on disconnect it drops in-memory
// snapshots and fails pending calls. Observers stay attached throughout.
//
// # Event Callbacks
//
// Handlers registered with OnEvent see connection changes, user changes
// and every non-fatal failure reported by the registry.
package service
