package subscription

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/streamio/streamio-go/internal/testpeer"
	"github.com/streamio/streamio-go/pkg/connection"
	"github.com/streamio/streamio-go/pkg/observer"
	"github.com/streamio/streamio-go/pkg/store"
	"github.com/streamio/streamio-go/pkg/store/mocks"
	"github.com/streamio/streamio-go/pkg/wire"
)

func seed(t *testing.T, st store.Store, url string, data any, meta store.Meta) {
	t.Helper()
	_, err := st.Put(context.Background(), url, data, meta)
	require.NoError(t, err)
}

func TestHashConfirmationSkipsWrite(t *testing.T) {
	mem := store.NewMemoryStore()
	data := map[string]any{"name": "cached"}
	hash := testpeer.HashOf(data)
	seed(t, mem, "/doc", data, store.Meta{Hash: hash, Expire: time.Now().Add(DefaultExpire)})

	h := newHarness(t, mem)
	h.peer.Set("/doc", data)

	doc := observer.NewDoc("/doc", observer.Options{Precache: true})
	require.NoError(t, h.reg.Add(doc, nil))
	h.connect()
	h.idle(t, "/doc")

	assert.Equal(t, "cached", doc.Get("name"))
	reqs := h.peer.Requests(wire.KindStream)
	require.Len(t, reqs, 1)
	assert.Equal(t, hash, reqs[0].Hash)
	assert.Equal(t, 0, h.store.Puts())
}

func TestHashConfirmationRefreshesExpiringEntry(t *testing.T) {
	mem := store.NewMemoryStore()
	data := map[string]any{"name": "cached"}
	hash := testpeer.HashOf(data)
	seed(t, mem, "/doc", data, store.Meta{Hash: hash, Expire: time.Now().Add(30 * time.Minute)})

	h := newHarness(t, mem)
	h.peer.Set("/doc", data)

	doc := observer.NewDoc("/doc", observer.Options{Precache: true})
	require.NoError(t, h.reg.Add(doc, nil))
	h.connect()
	h.idle(t, "/doc")

	require.Eventually(t, func() bool { return h.store.Puts() == 1 }, waitFor, tick)
	entry, err := mem.Get(context.Background(), "/doc")
	require.NoError(t, err)
	assert.Equal(t, hash, entry.Hash)
	assert.True(t, entry.Expire.After(time.Now().Add(time.Hour)))
}

func TestStaleCacheIsReplaced(t *testing.T) {
	mem := store.NewMemoryStore()
	seed(t, mem, "/doc", map[string]any{"name": "old"}, store.Meta{Hash: "old", Expire: time.Now().Add(time.Hour)})

	h := newHarness(t, mem)
	fresh := h.peer.Set("/doc", map[string]any{"name": "new"})

	doc := observer.NewDoc("/doc", observer.Options{Precache: true})
	require.NoError(t, h.reg.Add(doc, nil))
	h.connect()
	h.idle(t, "/doc")

	assert.Equal(t, "new", doc.Get("name"))
	entry, err := mem.Get(context.Background(), "/doc")
	require.NoError(t, err)
	assert.Equal(t, fresh, entry.Hash)
	assert.Equal(t, map[string]any{"name": "new"}, entry.Data)
	assert.Equal(t, 2, generationOf(entry.Revision))
}

func generationOf(rev string) int {
	n := 0
	for _, c := range rev {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func TestCacheNotOfferedWithoutPrecache(t *testing.T) {
	mem := store.NewMemoryStore()
	data := map[string]any{"name": "cached"}
	seed(t, mem, "/doc", data, store.Meta{Hash: testpeer.HashOf(data), Expire: time.Now().Add(time.Hour)})

	h := newHarness(t, mem)
	h.peer.Set("/doc", data)

	require.NoError(t, h.reg.Add(observer.NewDoc("/doc", observer.Options{}), nil))
	h.connect()
	h.idle(t, "/doc")

	reqs := h.peer.Requests(wire.KindStream)
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Hash)
}

func TestCacheOfOtherUserNotOffered(t *testing.T) {
	mem := store.NewMemoryStore()
	data := map[string]any{"name": "cached"}
	seed(t, mem, "/doc", data, store.Meta{Hash: testpeer.HashOf(data), UserID: "alice", Expire: time.Now().Add(time.Hour)})

	h := newHarness(t, mem)
	h.reg.SetUser("bob")
	h.peer.Set("/doc", data)

	require.NoError(t, h.reg.Add(observer.NewDoc("/doc", observer.Options{Precache: true}), nil))
	h.connect()
	h.idle(t, "/doc")

	reqs := h.peer.Requests(wire.KindStream)
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Hash)

	entry, err := mem.Get(context.Background(), "/doc")
	require.NoError(t, err)
	assert.Equal(t, "bob", entry.UserID)
}

func TestAddOptionsOverridePrecache(t *testing.T) {
	mem := store.NewMemoryStore()
	data := map[string]any{"name": "cached"}
	hash := testpeer.HashOf(data)
	seed(t, mem, "/doc", data, store.Meta{Hash: hash, Expire: time.Now().Add(time.Hour)})

	h := newHarness(t, mem)
	h.peer.Set("/doc", data)

	precache := true
	require.NoError(t, h.reg.Add(observer.NewDoc("/doc", observer.Options{}), &AddOptions{Precache: &precache}))
	h.connect()
	h.idle(t, "/doc")

	info, _ := h.reg.Lookup("/doc")
	assert.True(t, info.Precache)
	assert.Equal(t, hash, h.peer.Requests(wire.KindStream)[0].Hash)
}

func TestFetchTimeoutSchedulesRetry(t *testing.T) {
	h := newHarness(t, nil, func(c *Config) {
		c.FetchTimeout = 30 * time.Millisecond
		c.Retry = connection.BackoffConfig{Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond, Multiplier: 2}
	})
	h.peer.Set("/doc", map[string]any{"name": "a"})
	h.connect()
	h.peer.Hold()

	doc := observer.NewDoc("/doc", observer.Options{})
	require.NoError(t, h.reg.Add(doc, nil))

	require.Eventually(t, func() bool { return h.peer.Count(wire.KindStream) >= 2 }, waitFor, tick)
	assert.GreaterOrEqual(t, h.failures.matching(ErrTransport), 1)
	assert.GreaterOrEqual(t, h.failures.matching(context.DeadlineExceeded), 1)

	h.peer.Drop()
	h.peer.Release()
	require.Eventually(t, func() bool { return doc.Get("name") == "a" }, waitFor, tick)
}

func TestRemoteErrorDoesNotRetry(t *testing.T) {
	h := newHarness(t, nil, func(c *Config) {
		c.Retry = connection.BackoffConfig{Initial: 5 * time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2}
	})
	h.connect()

	require.NoError(t, h.reg.Add(observer.NewDoc("/missing", observer.Options{}), nil))
	require.Eventually(t, func() bool { return h.failures.matching(ErrTransport) == 1 }, waitFor, tick)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.peer.Count(wire.KindStream))
	info, _ := h.reg.Lookup("/missing")
	assert.False(t, info.Updating)
	assert.False(t, info.Cached)
}

func TestPersistRetriesRevisionConflict(t *testing.T) {
	ms := mocks.NewMockStore(t)
	ms.EXPECT().Get(mock.Anything, "/doc").Return(nil, store.ErrNotFound).Once()
	ms.EXPECT().Put(mock.Anything, "/doc", mock.Anything, mock.Anything).
		Return("", &store.ConflictError{ID: "/doc", Actual: "3-abc"}).Once()
	ms.EXPECT().Get(mock.Anything, "/doc").Return(&store.Entry{ID: "/doc", Revision: "3-abc"}, nil).Once()
	ms.EXPECT().Put(mock.Anything, "/doc", mock.Anything, mock.MatchedBy(func(m store.Meta) bool {
		return m.Revision == "3-abc"
	})).Return("4-def", nil).Once()

	h := newHarness(t, ms)
	h.peer.Set("/doc", map[string]any{"name": "a"})

	doc := observer.NewDoc("/doc", observer.Options{})
	require.NoError(t, h.reg.Add(doc, nil))
	h.connect()

	require.Eventually(t, func() bool {
		info, _ := h.reg.Lookup("/doc")
		return info.Revision == "4-def" && !info.Updating
	}, waitFor, tick)
	assert.Equal(t, "a", doc.Get("name"))
	assert.Equal(t, 0, h.failures.matching(ErrStore))
}

func TestStoreFailureIsNotFatal(t *testing.T) {
	disk := errors.New("disk unavailable")
	ms := mocks.NewMockStore(t)
	ms.EXPECT().Get(mock.Anything, "/doc").Return(nil, disk).Once()
	ms.EXPECT().Put(mock.Anything, "/doc", mock.Anything, mock.Anything).Return("", disk).Once()

	h := newHarness(t, ms)
	h.peer.Set("/doc", map[string]any{"name": "a"})

	doc := observer.NewDoc("/doc", observer.Options{})
	require.NoError(t, h.reg.Add(doc, nil))
	h.connect()

	require.Eventually(t, func() bool { return doc.Get("name") == "a" }, waitFor, tick)
	require.Eventually(t, func() bool { return h.failures.matching(ErrStore) == 2 }, waitFor, tick)
	assert.Equal(t, 2, h.failures.matching(disk))
}

func TestPushWritesThroughAndApplies(t *testing.T) {
	h := newHarness(t, nil)
	h.peer.Set("/doc", map[string]any{"name": "a"})
	h.connect()

	doc := observer.NewDoc("/doc", observer.Options{})
	require.NoError(t, h.reg.Add(doc, nil))
	h.idle(t, "/doc")

	hash := h.peer.Set("/doc", map[string]any{"name": "pushed"})
	h.push(t, "/doc")

	assert.Equal(t, "pushed", doc.Get("name"))
	entry, err := h.store.Get(context.Background(), "/doc")
	require.NoError(t, err)
	assert.Equal(t, hash, entry.Hash)
	assert.Equal(t, 2, h.store.Puts())

	h.peer.Set("/other", map[string]any{"name": "x"})
	h.push(t, "/other")
	_, err = h.store.Get(context.Background(), "/other")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// transitionLog records fetch cycle transitions as "url event from->to".
type transitionLog struct {
	mu    sync.Mutex
	items []string
}

func (l *transitionLog) add(url, event, from, to string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, url+" "+event+" "+from+"->"+to)
}

func (l *transitionLog) of(url string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, item := range l.items {
		if strings.HasPrefix(item, url+" ") {
			out = append(out, item)
		}
	}
	return out
}

func (l *transitionLog) has(item string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Contains(l.items, item)
}

func TestFetchCycleTransitions(t *testing.T) {
	transitions := &transitionLog{}
	h := newHarness(t, nil, func(c *Config) { c.OnFetchState = transitions.add })
	h.peer.Set("/doc", map[string]any{"name": "a"})
	h.peer.Set("/slow", map[string]any{"name": "s"})
	h.connect()

	require.NoError(t, h.reg.Add(observer.NewDoc("/doc", observer.Options{}), nil))
	h.idle(t, "/doc")
	require.Eventually(t, func() bool { return transitions.has("/doc finish reconcile->done") }, waitFor, tick)
	assert.Equal(t, []string{
		"/doc cached fetch-cache->await-confirmation",
		"/doc confirmed await-confirmation->reconcile",
		"/doc finish reconcile->done",
	}, transitions.of("/doc"))
	info, _ := h.reg.Lookup("/doc")
	assert.Equal(t, StateDone, info.State)

	require.NoError(t, h.reg.Add(observer.NewDoc("/missing", observer.Options{}), nil))
	require.Eventually(t, func() bool { return transitions.has("/missing abort await-confirmation->done") }, waitFor, tick)
	assert.Equal(t, []string{
		"/missing cached fetch-cache->await-confirmation",
		"/missing abort await-confirmation->done",
	}, transitions.of("/missing"))

	h.peer.Hold()
	require.NoError(t, h.reg.Add(observer.NewDoc("/slow", observer.Options{}), nil))
	require.Eventually(t, func() bool {
		info, _ := h.reg.Lookup("/slow")
		return info.Updating && info.State == StateAwaitConfirmation
	}, waitFor, tick)
	h.peer.Release()
	h.idle(t, "/slow")
}

// gatedStore blocks every Get until open is closed.
type gatedStore struct {
	store.Store
	entered chan struct{}
	open    chan struct{}
}

func (s *gatedStore) Get(ctx context.Context, id string) (*store.Entry, error) {
	s.entered <- struct{}{}
	<-s.open
	return s.Store.Get(ctx, id)
}

func waitEntered(t *testing.T, gs *gatedStore) {
	t.Helper()
	select {
	case <-gs.entered:
	case <-time.After(waitFor):
		t.Fatal("store Get was not called")
	}
}

func TestStaleCycleDoesNotStream(t *testing.T) {
	gs := &gatedStore{
		Store:   store.NewMemoryStore(),
		entered: make(chan struct{}, 4),
		open:    make(chan struct{}),
	}
	transitions := &transitionLog{}
	h := newHarness(t, gs, func(c *Config) { c.OnFetchState = transitions.add })
	openGate := sync.OnceFunc(func() { close(gs.open) })
	t.Cleanup(openGate)
	h.peer.Set("/doc", map[string]any{"name": "a"})

	doc := observer.NewDoc("/doc", observer.Options{})
	require.NoError(t, h.reg.Add(doc, nil))
	h.connect()
	waitEntered(t, gs)

	h.reg.Disconnected()
	h.connect()
	waitEntered(t, gs)

	h.peer.Hold()
	openGate()

	require.Eventually(t, func() bool { return transitions.has("/doc abort fetch-cache->done") }, waitFor, tick)
	require.Eventually(t, func() bool { return h.peer.Held() == 1 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.peer.Count(wire.KindStream))

	h.peer.Release()
	require.Eventually(t, func() bool { return doc.Get("name") == "a" }, waitFor, tick)
	assert.Equal(t, 1, h.peer.Count(wire.KindStream))
	require.Eventually(t, func() bool {
		info, _ := h.reg.Lookup("/doc")
		return info.State == StateDone && !info.Updating
	}, waitFor, tick)
}

func TestPushesApplyInOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.peer.Set("/doc", map[string]any{"name": "v0"})
	h.connect()

	var mu sync.Mutex
	var seen []any
	var doc *observer.Doc
	doc = observer.NewDoc("/doc", observer.Options{
		Watch: func(observer.Event) {
			mu.Lock()
			seen = append(seen, doc.Get("name"))
			mu.Unlock()
		},
	})
	require.NoError(t, h.reg.Add(doc, nil))
	h.idle(t, "/doc")

	for _, name := range []string{"v1", "v2", "v3"} {
		h.peer.Set("/doc", map[string]any{"name": name})
		require.NoError(t, h.peer.Push("/doc"))
	}
	require.Eventually(t, h.reg.pushesSettled, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{"v0", "v1", "v2", "v3"}, seen)
}

func TestPushWhileDisconnectedIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.reg.Add(observer.NewDoc("/doc", observer.Options{}), nil))

	h.reg.HandlePush(&wire.Push{URL: "/doc", Hash: "h", Data: map[string]any{"name": "x"}})

	assert.True(t, h.reg.pushesSettled())
	assert.Equal(t, 0, h.store.Puts())
	info, _ := h.reg.Lookup("/doc")
	assert.False(t, info.Cached)
}
