package subscription

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamio/streamio-go/pkg/interaction"
	"github.com/streamio/streamio-go/pkg/observer"
	"github.com/streamio/streamio-go/pkg/wire"
)

func TestSave(t *testing.T) {
	h := newHarness(t, nil)
	h.connect()
	h.peer.OnSync(func(req *wire.SyncRequest) (any, error) {
		return map[string]any{"ok": true}, nil
	})

	doc := observer.NewDoc("/doc", observer.Options{})
	result, err := h.reg.Save(context.Background(), doc, wire.MethodPatch, map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, result)

	reqs := h.peer.Requests(wire.KindSync)
	require.Len(t, reqs, 1)
	assert.Equal(t, wire.MethodPatch, reqs[0].Sync.Method)
	assert.Equal(t, "/doc", reqs[0].Sync.URL)
	assert.Equal(t, doc.ClientID(), reqs[0].Sync.ClientID)
	assert.Equal(t, map[string]any{"name": "x"}, reqs[0].Sync.Data)
	assert.Empty(t, reqs[0].Sync.Emit)
}

func TestSaveUnknownMethod(t *testing.T) {
	h := newHarness(t, nil)
	h.connect()

	_, err := h.reg.Save(context.Background(), observer.NewDoc("/doc", observer.Options{}), "upsert", nil)
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.Equal(t, 0, h.peer.Count(wire.KindSync))
}

func TestEmit(t *testing.T) {
	h := newHarness(t, nil)
	h.connect()

	doc := observer.NewDoc("/doc", observer.Options{})
	result, err := h.reg.Emit(context.Background(), doc, "archive", map[string]any{"force": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"force": true}, result)

	reqs := h.peer.Requests(wire.KindSync)
	require.Len(t, reqs, 1)
	assert.Equal(t, wire.MethodEmit, reqs[0].Sync.Method)
	assert.Equal(t, "archive", reqs[0].Sync.Emit)

	_, err = h.reg.Emit(context.Background(), doc, "", nil)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestSyncFailures(t *testing.T) {
	h := newHarness(t, nil)
	doc := observer.NewDoc("/doc", observer.Options{})

	_, err := h.reg.Save(context.Background(), doc, wire.MethodCreate, nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, interaction.ErrNoConnection)

	h.connect()
	h.peer.OnSync(func(*wire.SyncRequest) (any, error) {
		return nil, assert.AnError
	})
	_, err = h.reg.Save(context.Background(), doc, wire.MethodCreate, nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, interaction.ErrRemote)

	_, err = h.reg.Save(context.Background(), nil, wire.MethodCreate, nil)
	assert.ErrorIs(t, err, ErrNilObserver)
}
