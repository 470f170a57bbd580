package subscription

import (
	"sync"

	"github.com/streamio/streamio-go/pkg/payload"
	"github.com/streamio/streamio-go/pkg/wire"
)

// pushQueue hands the pushes of one session to a single worker in arrival
// order, so the channel read loop never runs store writes or observer
// callbacks.
type pushQueue struct {
	session uint64

	mu      sync.Mutex
	items   []*wire.Push
	pending int

	wake chan struct{}
	done chan struct{}
}

func newPushQueue(session uint64) *pushQueue {
	return &pushQueue{
		session: session,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (q *pushQueue) enqueue(p *wire.Push) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.pending++
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next blocks until a push is queued or the queue is stopped. Pushes left
// in a stopped queue are dropped.
func (q *pushQueue) next() (*wire.Push, bool) {
	for {
		select {
		case <-q.done:
			return nil, false
		default:
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			p := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return p, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-q.done:
			return nil, false
		}
	}
}

// finish marks one dequeued push as handled.
func (q *pushQueue) finish() {
	q.mu.Lock()
	q.pending--
	q.mu.Unlock()
}

// settled reports whether every queued push has been handled.
func (q *pushQueue) settled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending == 0
}

// stop must be called once, with the registry lock held.
func (q *pushQueue) stop() {
	close(q.done)
}

// startPushes replaces the push queue with one for session. Must be
// called with r.mu held.
func (r *Registry) startPushes(session uint64) {
	r.stopPushes()
	q := newPushQueue(session)
	r.pushes = q
	r.wg.Add(1)
	go r.drainPushes(q)
}

// stopPushes must be called with r.mu held.
func (r *Registry) stopPushes() {
	if r.pushes != nil {
		r.pushes.stop()
		r.pushes = nil
	}
}

func (r *Registry) drainPushes(q *pushQueue) {
	defer r.wg.Done()
	for {
		p, ok := q.next()
		if !ok {
			return
		}
		r.applyPush(q.session, p)
		q.finish()
	}
}

// pushesSettled reports whether the current session has no push waiting.
func (r *Registry) pushesSettled() bool {
	r.mu.Lock()
	q := r.pushes
	r.mu.Unlock()
	return q == nil || q.settled()
}

// HandlePush queues unsolicited data for a subscribed resource. Pushes
// are applied in arrival order on a worker of the current session; while
// disconnected they are dropped.
func (r *Registry) HandlePush(p *wire.Push) {
	if p == nil {
		return
	}
	r.mu.Lock()
	q := r.pushes
	r.mu.Unlock()
	if q == nil {
		r.debugLog("push: not connected, dropped", "url", p.URL)
		return
	}
	q.enqueue(p)
}

// applyPush writes a push through to the store and applies it to every
// observer. Pushes for unknown resources are dropped.
func (r *Registry) applyPush(session uint64, p *wire.Push) {
	r.mu.Lock()
	sub, ok := r.subs[p.URL]
	current := r.session == session
	user := r.user
	r.mu.Unlock()
	if !current {
		return
	}
	if !ok {
		r.debugLog("push: no subscription", "url", p.URL)
		return
	}

	r.persist(r.ctx, sub, p.URL, p.Data, p.Hash, user)

	snapshot, err := payload.Uncompress(p.Data)
	if err != nil {
		r.report(ReconciliationFailure, p.URL, "", err)
		return
	}

	r.mu.Lock()
	if r.session != session || r.subs[p.URL] != sub {
		r.mu.Unlock()
		return
	}
	sub.setCache(snapshot)
	targets := sub.attachments()
	r.mu.Unlock()

	r.debugLog("push: applying", "url", p.URL, "hash", p.Hash)
	r.apply(p.URL, snapshot, targets)
}
