package subscription

import (
	"context"
	"errors"
	"strconv"

	"github.com/looplab/fsm"

	"github.com/streamio/streamio-go/pkg/interaction"
	"github.com/streamio/streamio-go/pkg/payload"
	"github.com/streamio/streamio-go/pkg/store"
	"github.com/streamio/streamio-go/pkg/wire"
)

// Fetch cycle states.
const (
	StateFetchCache        = "fetch-cache"
	StateAwaitConfirmation = "await-confirmation"
	StateReconcile         = "reconcile"
	StateDone              = "done"
)

// Fetch cycle events.
const (
	eventCached    = "cached"
	eventConfirmed = "confirmed"
	eventFinish    = "finish"
	eventAbort     = "abort"
)

// Fetch outcomes reported in metrics.
const (
	outcomeConfirmed = "confirmed"
	outcomeUpdated   = "updated"
	outcomeAborted   = "aborted"
)

var fetchEvents = fsm.Events{
	{Name: eventCached, Src: []string{StateFetchCache}, Dst: StateAwaitConfirmation},
	{Name: eventConfirmed, Src: []string{StateAwaitConfirmation}, Dst: StateReconcile},
	{Name: eventFinish, Src: []string{StateReconcile}, Dst: StateDone},
	{Name: eventAbort, Src: []string{StateFetchCache, StateAwaitConfirmation, StateReconcile}, Dst: StateDone},
}

// Fetch runs a fetch cycle for url and waits for it to finish. If a cycle
// for url is already in flight on the current connection, Fetch joins it
// instead of starting another.
func (r *Registry) Fetch(ctx context.Context, url string) error {
	r.mu.Lock()
	closed := r.closed
	session := r.session
	_, subscribed := r.subs[url]
	r.mu.Unlock()

	switch {
	case closed:
		return ErrClosed
	case !subscribed:
		return ErrNotSubscribed
	case session == 0:
		return ErrNotConnected
	}

	ch := r.flights.DoChan(flightKey(session, url), r.cycleFunc(session, url))
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startFetch runs a fetch cycle in the background.
func (r *Registry) startFetch(session uint64, url string) {
	go func() {
		_, _, _ = r.flights.Do(flightKey(session, url), r.cycleFunc(session, url))
	}()
}

func flightKey(session uint64, url string) string {
	return strconv.FormatUint(session, 10) + ":" + url
}

func (r *Registry) cycleFunc(session uint64, url string) func() (any, error) {
	return func() (any, error) {
		if !r.track() {
			return nil, ErrClosed
		}
		defer r.wg.Done()
		return nil, r.runCycle(r.ctx, session, url)
	}
}

// track registers background work unless the registry is closed.
func (r *Registry) track() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.wg.Add(1)
	return true
}

// cycle is the state of one fetch cycle.
type cycle struct {
	r       *Registry
	url     string
	session uint64
	sub     *subscription

	user      string
	precache  bool
	entry     *store.Entry
	candidate string

	machine *fsm.FSM
}

func (r *Registry) runCycle(ctx context.Context, session uint64, url string) error {
	c := &cycle{r: r, url: url, session: session}
	c.machine = fsm.NewFSM(StateFetchCache, fetchEvents, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) { c.entered(e) },
	})

	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	start := r.config.Now()
	outcome, err := c.run(ctx)
	r.metrics.fetches.WithLabelValues(outcome).Inc()
	if err != nil {
		_ = c.machine.Event(context.WithoutCancel(ctx), eventAbort)
		return err
	}
	r.metrics.fetchDuration.Observe(r.config.Now().Sub(start).Seconds())
	return nil
}

// begin marks the subscription as updating.
func (c *cycle) begin() error {
	r := c.r
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[c.url]
	if !ok {
		return ErrNotSubscribed
	}
	if r.session != c.session {
		return ErrStaleSession
	}
	sub.inflight = c.session
	sub.state = c.machine.Current()
	c.sub = sub
	c.user = r.user
	c.precache = sub.precache
	return nil
}

// end clears the updating mark if it is still ours.
func (c *cycle) end() {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	if c.sub.inflight == c.session {
		c.sub.inflight = 0
	}
}

// current reports whether the cycle still belongs to the live subscription
// and connection.
func (c *cycle) current() bool {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	return c.r.session == c.session && c.r.subs[c.url] == c.sub
}

// entered records a state change. A cycle that lost its subscription to a
// newer one leaves the recorded state alone.
func (c *cycle) entered(e *fsm.Event) {
	r := c.r
	r.mu.Lock()
	if c.sub != nil && (c.sub.inflight == c.session || c.sub.inflight == 0) {
		c.sub.state = e.Dst
	}
	r.mu.Unlock()

	r.debugLog("fetch: state change", "url", c.url, "event", e.Event, "from", e.Src, "to", e.Dst)
	if r.config.OnFetchState != nil {
		r.config.OnFetchState(c.url, e.Event, e.Src, e.Dst)
	}
}

// advance fires event unless the connection the cycle started on is gone.
func (c *cycle) advance(ctx context.Context, event string) error {
	if !c.current() {
		return ErrStaleSession
	}
	return c.machine.Event(ctx, event)
}

// run performs the step of the current state until the cycle is done.
func (c *cycle) run(ctx context.Context) (string, error) {
	var (
		resp    *wire.StreamResponse
		outcome = outcomeAborted
		err     error
	)
	for {
		switch c.machine.Current() {
		case StateFetchCache:
			c.fetchCache(ctx)
			err = c.advance(ctx, eventCached)
		case StateAwaitConfirmation:
			resp, err = c.awaitConfirmation(ctx)
			if err == nil {
				err = c.advance(ctx, eventConfirmed)
			}
		case StateReconcile:
			outcome = c.reconcile(ctx, resp)
			c.r.mu.Lock()
			c.sub.backoff.Reset()
			c.r.mu.Unlock()
			err = c.machine.Event(ctx, eventFinish)
		case StateDone:
			return outcome, nil
		}
		if err != nil {
			return outcomeAborted, err
		}
	}
}

// fetchCache reads the stored copy and applies it when it may be used
// before confirmation.
func (c *cycle) fetchCache(ctx context.Context) {
	r := c.r

	entry, err := r.store.Get(ctx, c.url)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		r.debugLog("fetch: cache miss", "url", c.url)
		return
	default:
		r.report(StoreFailure, c.url, "", err)
		return
	}

	c.entry = entry
	r.mu.Lock()
	c.sub.revision = entry.Revision
	r.mu.Unlock()

	if entry.Data == nil || entry.UserID != c.user || !c.precache {
		r.debugLog("fetch: cached copy not reusable", "url", c.url, "precache", c.precache)
		return
	}
	c.candidate = entry.Hash
	r.debugLog("fetch: applying cached copy", "url", c.url, "hash", entry.Hash)
	c.applySnapshot(entry.Data)
}

func (c *cycle) awaitConfirmation(ctx context.Context) (*wire.StreamResponse, error) {
	r := c.r

	fctx, cancel := context.WithTimeout(ctx, r.config.FetchTimeout)
	defer cancel()

	resp, err := r.client.Stream(fctx, c.url, c.candidate)
	if err == nil {
		return resp, nil
	}

	r.report(failureKind(err), c.url, "", err)
	if errors.Is(err, interaction.ErrRequestTimeout) || errors.Is(err, context.DeadlineExceeded) {
		r.scheduleRetry(c.session, c.url, c.sub)
	}
	return nil, err
}

// reconcile decides which copy is authoritative, persists it if needed and
// hands at most one snapshot to the observers.
func (c *cycle) reconcile(ctx context.Context, resp *wire.StreamResponse) string {
	r := c.r

	if c.candidate != "" && resp.Hash == c.candidate {
		user := r.User()
		remaining := c.entry.Expire.Sub(r.config.Now())
		if remaining < r.config.Expire/2 || c.entry.UserID != user {
			r.debugLog("fetch: refreshing cache entry", "url", c.url, "remaining", remaining)
			r.persist(ctx, c.sub, c.url, c.entry.Data, c.entry.Hash, user)
		}

		r.mu.Lock()
		hasCache := c.sub.hasCache
		r.mu.Unlock()
		if !hasCache {
			c.applySnapshot(c.entry.Data)
		}
		return outcomeConfirmed
	}

	r.persist(ctx, c.sub, c.url, resp.Data, resp.Hash, r.User())
	c.applySnapshot(resp.Data)
	return outcomeUpdated
}

// applySnapshot decodes raw, caches it and applies it to every client.
func (c *cycle) applySnapshot(raw any) {
	r := c.r

	snapshot, err := payload.Uncompress(raw)
	if err != nil {
		r.report(ReconciliationFailure, c.url, "", err)
		return
	}

	r.mu.Lock()
	if r.session != c.session || r.subs[c.url] != c.sub {
		r.mu.Unlock()
		return
	}
	c.sub.setCache(snapshot)
	targets := c.sub.attachments()
	r.mu.Unlock()

	r.apply(c.url, snapshot, targets)
}

// persist writes data through to the store. A revision conflict is retried
// once against the latest revision.
func (r *Registry) persist(ctx context.Context, sub *subscription, url string, data any, hash, user string) {
	r.mu.Lock()
	meta := store.Meta{
		Revision: sub.revision,
		Hash:     hash,
		UserID:   user,
		Expire:   r.config.Now().Add(r.config.Expire),
	}
	r.mu.Unlock()

	rev, err := r.store.Put(ctx, url, data, meta)
	if errors.Is(err, store.ErrRevisionConflict) {
		r.debugLog("persist: revision conflict, retrying", "url", url, "revision", meta.Revision)
		latest, getErr := r.store.Get(ctx, url)
		switch {
		case getErr == nil:
			meta.Revision = latest.Revision
		case errors.Is(getErr, store.ErrNotFound):
			meta.Revision = ""
		default:
			r.report(StoreFailure, url, "", getErr)
			return
		}
		rev, err = r.store.Put(ctx, url, data, meta)
	}
	if err != nil {
		r.report(StoreFailure, url, "", err)
		return
	}

	r.mu.Lock()
	sub.revision = rev
	r.mu.Unlock()
	r.metrics.storeWrites.Inc()
}

// scheduleRetry arms a backoff retry for a timed-out fetch.
func (r *Registry) scheduleRetry(session uint64, url string, sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.session != session || r.subs[url] != sub || len(sub.clients) == 0 {
		return
	}
	delay := sub.backoff.Next()
	_ = r.retries.Schedule(url, delay)
	r.debugLog("fetch: retry scheduled", "url", url, "delay", delay, "attempt", sub.backoff.Attempts())
}

// retry runs when a retry delay has elapsed.
func (r *Registry) retry(url string) {
	r.mu.Lock()
	session := r.session
	_, ok := r.subs[url]
	r.mu.Unlock()

	if session == 0 || !ok {
		return
	}
	r.startFetch(session, url)
}

func failureKind(err error) FailureKind {
	if errors.Is(err, interaction.ErrDisconnected) {
		return DisconnectionFailure
	}
	return TransportFailure
}
