package main

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/streamio/streamio-go/internal/testpeer"
	"github.com/streamio/streamio-go/pkg/wire"
)

var errNotDocument = errors.New("patch needs a document resource")

// syncHandler applies writes to the peer's resources and pushes the result
// to every connected client.
func syncHandler(p *testpeer.Peer, logger *slog.Logger) func(*wire.SyncRequest) (any, error) {
	return func(req *wire.SyncRequest) (any, error) {
		logger.Info("peer: sync", "url", req.URL, "method", req.Method, "clientID", req.ClientID)

		current, exists := p.Data(req.URL)
		var next any
		switch req.Method {
		case wire.MethodRead:
			if !exists {
				return nil, fmt.Errorf("%w: %s", testpeer.ErrUnknownResource, req.URL)
			}
			return current, nil
		case wire.MethodEmit:
			logger.Info("peer: event", "url", req.URL, "name", req.Emit, "args", req.Data)
			return req.Data, nil
		case wire.MethodCreate, wire.MethodUpdate:
			next = req.Data
		case wire.MethodPatch:
			merged, err := patch(current, req.Data)
			if err != nil {
				return nil, err
			}
			next = merged
		case wire.MethodDelete:
			next = nil
		default:
			return nil, fmt.Errorf("unsupported method %q", req.Method)
		}

		p.Set(req.URL, next)
		// Delivery errors only concern clients that already went away.
		go func() {
			if err := p.Push(req.URL); err != nil {
				logger.Debug("peer: push failed", "url", req.URL, "error", err)
			}
		}()
		return next, nil
	}
}

// patch merges the fields of data into a copy of the current document.
func patch(current, data any) (map[string]any, error) {
	fields, ok := data.(map[string]any)
	if !ok {
		return nil, errNotDocument
	}
	out := map[string]any{}
	if current != nil {
		doc, ok := current.(map[string]any)
		if !ok {
			return nil, errNotDocument
		}
		maps.Copy(out, doc)
	}
	maps.Copy(out, fields)
	return out, nil
}
