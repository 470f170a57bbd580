package subscription

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/streamio/streamio-go/pkg/grace"
	"github.com/streamio/streamio-go/pkg/interaction"
	"github.com/streamio/streamio-go/pkg/observer"
	"github.com/streamio/streamio-go/pkg/store"
)

// Registry owns every subscription of one channel.
type Registry struct {
	mu sync.Mutex

	store   store.Store
	client  *interaction.Client
	config  Config
	logger  *slog.Logger
	metrics *metrics

	subs    map[string]*subscription
	clients map[string]string // client id -> url
	user    string

	// session identifies the current connection, 0 while disconnected.
	session    uint64
	sessionSeq uint64

	flights  singleflight.Group
	applyMu  sync.Mutex
	releases *grace.Scheduler
	retries  *grace.Scheduler
	pushes   *pushQueue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewRegistry creates a registry that persists through st and talks to the
// upstream through client. The registry installs itself as the push
// handler of client.
func NewRegistry(st store.Store, client *interaction.Client, config Config) *Registry {
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	r := &Registry{
		store:    st,
		client:   client,
		config:   config,
		logger:   config.Logger,
		metrics:  newMetrics(config.Registerer),
		subs:     make(map[string]*subscription),
		clients:  make(map[string]string),
		releases: grace.NewScheduler(),
		retries:  grace.NewScheduler(),
		ctx:      ctx,
		cancel:   cancel,
	}
	r.releases.OnExpiry(r.release)
	r.retries.OnExpiry(r.retry)
	client.SetPushHandler(r.HandlePush)
	return r
}

// Add attaches obs to the subscription for its URL, creating the
// subscription on first use. Adding an attached observer is a no-op.
func (r *Registry) Add(obs observer.Observer, opts *AddOptions) error {
	if obs == nil {
		return ErrNilObserver
	}
	url := obs.URL()
	if url == "" {
		return ErrEmptyURL
	}
	id := obs.ClientID()
	resolved := resolveOptions(obs.Precache(), opts)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if _, attached := r.clients[id]; attached {
		r.mu.Unlock()
		return nil
	}

	att := &attachment{obs: obs, initial: resolved.initial}
	r.clients[id] = url
	r.metrics.observers.Inc()

	if sub, exists := r.subs[url]; exists {
		if r.releases.Cancel(url) {
			r.debugLog("add: release cancelled", "url", url)
		}
		sub.clients = append(sub.clients, att)
		hasCache := sub.hasCache
		r.mu.Unlock()

		r.debugLog("add: attached to existing subscription", "url", url, "clientID", id, "cached", hasCache)
		if hasCache {
			r.applyCached(sub, att)
		}
		return nil
	}

	sub := newSubscription(url, resolved.precache, r.config.Retry)
	sub.clients = []*attachment{att}
	r.subs[url] = sub
	r.metrics.subscriptions.Inc()
	session := r.session
	r.mu.Unlock()

	if session == 0 {
		r.debugLog("add: not connected, deferring fetch", "url", url, "clientID", id)
		return nil
	}
	r.startFetch(session, url)
	return nil
}

// Remove detaches obs. When its subscription has no observers left the
// release timer is armed.
func (r *Registry) Remove(obs observer.Observer) {
	if obs == nil {
		return
	}
	id := obs.ClientID()

	r.mu.Lock()
	url, attached := r.clients[id]
	if !attached {
		r.mu.Unlock()
		return
	}
	delete(r.clients, id)
	r.metrics.observers.Dec()

	sub := r.subs[url]
	empty := false
	if sub != nil {
		if att := sub.detach(id); att != nil {
			att.detached = true
		}
		empty = len(sub.clients) == 0
	}
	if empty && !r.closed {
		_ = r.releases.Schedule(url, r.config.GracePeriod)
	}
	r.mu.Unlock()

	r.debugLog("remove: detached", "url", url, "clientID", id, "empty", empty)
}

// SetUser sets the identity that owns newly persisted cache entries.
func (r *Registry) SetUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user = userID
}

// User returns the current user identity.
func (r *Registry) User() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user
}

// IsConnected reports whether a channel is attached.
func (r *Registry) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != 0
}

// Subscriptions returns a view of every subscription ordered by URL.
func (r *Registry) Subscriptions() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, r.info(sub))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Lookup returns a view of the subscription for url.
func (r *Registry) Lookup(url string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[url]
	if !ok {
		return Info{}, false
	}
	return r.info(sub), true
}

// info must be called with r.mu held.
func (r *Registry) info(sub *subscription) Info {
	ids := make([]string, len(sub.clients))
	for i, att := range sub.clients {
		ids[i] = att.obs.ClientID()
	}
	info := Info{
		URL:      sub.url,
		Clients:  ids,
		Cached:   sub.hasCache,
		Revision: sub.revision,
		Precache: sub.precache,
		Updating: sub.inflight != 0,
		State:    sub.state,
	}
	if task, ok := r.releases.Pending(sub.url); ok {
		info.Releasing = true
		info.ReleaseIn = task.Remaining()
	}
	return info
}

// Close stops background work. Observers stay attached but receive no
// further updates.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.stopPushes()
	r.mu.Unlock()

	r.cancel()
	r.releases.CancelAll()
	r.retries.CancelAll()
	r.wg.Wait()
	return nil
}

// debugLog logs a debug message if logging is enabled.
func (r *Registry) debugLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

// report logs and forwards a non-fatal failure.
func (r *Registry) report(kind FailureKind, url, clientID string, err error) {
	f := &Failure{Kind: kind, URL: url, ClientID: clientID, Err: err}
	r.metrics.failures.WithLabelValues(kind.String()).Inc()
	if r.logger != nil {
		r.logger.Warn("subscription: "+kind.String()+" failure", "url", url, "clientID", clientID, "error", err)
	}
	if r.config.OnError != nil {
		r.config.OnError(f)
	}
}
