package subscription

import (
	"context"
	"fmt"

	"github.com/streamio/streamio-go/pkg/observer"
	"github.com/streamio/streamio-go/pkg/wire"
)

var writeMethods = map[string]bool{
	wire.MethodCreate: true,
	wire.MethodRead:   true,
	wire.MethodUpdate: true,
	wire.MethodPatch:  true,
	wire.MethodDelete: true,
}

// Save sends a write for the resource of obs and returns the upstream
// result. method is one of create, read, update, patch or delete.
func (r *Registry) Save(ctx context.Context, obs observer.Observer, method string, data any) (any, error) {
	if !writeMethods[method] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	return r.sync(ctx, obs, &wire.SyncRequest{Method: method, Data: data})
}

// Emit sends the named event with args for the resource of obs.
func (r *Registry) Emit(ctx context.Context, obs observer.Observer, name string, args any) (any, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty event name", ErrUnknownMethod)
	}
	return r.sync(ctx, obs, &wire.SyncRequest{Method: wire.MethodEmit, Data: args, Emit: name})
}

func (r *Registry) sync(ctx context.Context, obs observer.Observer, req *wire.SyncRequest) (any, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	if obs.URL() == "" {
		return nil, ErrEmptyURL
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	req.URL = obs.URL()
	req.ClientID = obs.ClientID()
	if req.Data == nil {
		req.Data = map[string]any{}
	}

	r.debugLog("sync: sending", "url", req.URL, "clientID", req.ClientID, "method", req.Method)
	result, err := r.client.Sync(ctx, req)
	if err != nil {
		return nil, &Failure{Kind: failureKind(err), URL: req.URL, ClientID: req.ClientID, Err: err}
	}
	return result, nil
}
