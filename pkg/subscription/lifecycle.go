package subscription

import (
	"context"
	"sort"

	"github.com/streamio/streamio-go/pkg/interaction"
)

// Connected attaches sender as the channel and re-runs the fetch cycle for
// every live subscription.
func (r *Registry) Connected(sender interaction.Sender) {
	r.client.Attach(sender)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.sessionSeq++
	r.session = r.sessionSeq
	session := r.session
	r.startPushes(session)
	urls := make([]string, 0, len(r.subs))
	for url := range r.subs {
		urls = append(urls, url)
	}
	r.mu.Unlock()

	sort.Strings(urls)
	if r.logger != nil {
		r.logger.Info("registry: connected", "session", session, "subscriptions", len(urls))
	}
	for _, url := range urls {
		r.startFetch(session, url)
	}
}

// Disconnected drops in-memory snapshots and timers and fails every
// pending call. Subscriptions that still have observers are kept and
// fetched again on the next Connected.
func (r *Registry) Disconnected() {
	r.mu.Lock()
	r.session = 0
	r.stopPushes()
	dropped := 0
	for url, sub := range r.subs {
		sub.clearCache()
		sub.inflight = 0
		sub.backoff.Reset()
		if len(sub.clients) == 0 {
			delete(r.subs, url)
			r.metrics.subscriptions.Dec()
			dropped++
		}
	}
	releases := r.releases.CancelAll()
	retries := r.retries.CancelAll()
	r.mu.Unlock()

	r.client.Detach()
	failed := r.client.FailAll(interaction.ErrDisconnected)

	if r.logger != nil {
		r.logger.Info("registry: disconnected",
			"dropped", dropped,
			"releasesCancelled", releases,
			"retriesCancelled", retries,
			"callsFailed", failed)
	}
}

// release runs when the grace period of url elapsed.
func (r *Registry) release(url string) {
	if !r.track() {
		return
	}
	defer r.wg.Done()

	r.mu.Lock()
	sub, ok := r.subs[url]
	if !ok || len(sub.clients) > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.subs, url)
	connected := r.session != 0
	r.metrics.subscriptions.Dec()
	r.metrics.releases.Inc()
	r.retries.Cancel(url)
	r.mu.Unlock()

	r.debugLog("release: subscription released", "url", url, "connected", connected)
	if !connected {
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.config.FetchTimeout)
	defer cancel()
	if err := r.client.Unstream(ctx, url); err != nil {
		r.report(failureKind(err), url, "", err)
	}
}
