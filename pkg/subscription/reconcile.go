package subscription

import (
	"fmt"

	"github.com/streamio/streamio-go/pkg/observer"
)

// Apply modes reported in metrics.
const (
	modeReset = "reset"
	modeSync  = "sync"
	modeVeto  = "veto"
)

// apply hands snapshot to every target. Updates are serialized so an
// observer never sees two snapshots interleaved.
func (r *Registry) apply(url string, snapshot any, targets []*attachment) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	r.applyLocked(url, snapshot, targets)
}

// applyCached hands the cached snapshot of sub to a newly attached
// observer. If the apply lock is taken, possibly by an observer callback
// that is adding this observer, delivery happens once it is released.
func (r *Registry) applyCached(sub *subscription, att *attachment) {
	if r.applyMu.TryLock() {
		defer r.applyMu.Unlock()
		r.applyCachedLocked(sub, att)
		return
	}
	if !r.track() {
		return
	}
	go func() {
		defer r.wg.Done()
		r.applyMu.Lock()
		defer r.applyMu.Unlock()
		r.applyCachedLocked(sub, att)
	}()
}

func (r *Registry) applyCachedLocked(sub *subscription, att *attachment) {
	r.mu.Lock()
	if !sub.hasCache || r.subs[sub.url] != sub || att.detached {
		r.mu.Unlock()
		return
	}
	snapshot := sub.cache
	r.mu.Unlock()

	r.applyLocked(sub.url, snapshot, []*attachment{att})
}

// applyLocked must be called with r.applyMu held.
func (r *Registry) applyLocked(url string, snapshot any, targets []*attachment) {
	for _, att := range targets {
		r.mu.Lock()
		detached := att.detached
		initial := att.initial
		r.mu.Unlock()
		if detached {
			continue
		}

		mode, err := applyOne(att.obs, snapshot, initial)
		if err != nil {
			r.report(ReconciliationFailure, url, att.obs.ClientID(), err)
			continue
		}
		r.metrics.applies.WithLabelValues(mode).Inc()
		r.debugLog("apply: observer updated", "url", url, "clientID", att.obs.ClientID(), "mode", mode)

		r.mu.Lock()
		att.initial = false
		r.mu.Unlock()
	}
}

// applyOne updates a single observer. A panicking observer is contained
// and reported.
func applyOne(obs observer.Observer, snapshot any, initial bool) (mode string, err error) {
	defer func() {
		if p := recover(); p != nil {
			mode = ""
			err = fmt.Errorf("%w: %v", ErrObserverPanic, p)
		}
	}()

	switch o := obs.(type) {
	case observer.Collection:
		return applyCollection(o, snapshot, initial)
	case observer.Record:
		return applyRecord(o, snapshot)
	default:
		return "", fmt.Errorf("%w: %T", ErrObserverType, obs)
	}
}

func applyRecord(rec observer.Record, snapshot any) (string, error) {
	fields, err := rec.Parse(snapshot)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return modeVeto, nil
	}
	rec.Reset(fields)
	return modeReset, nil
}

// applyCollection updates members in place when the incoming records line
// up with them one to one, and replaces the member list otherwise.
func applyCollection(col observer.Collection, snapshot any, initial bool) (string, error) {
	records, err := col.Parse(snapshot)
	if err != nil {
		return "", err
	}

	members := col.Members()
	if initial || !aligned(col.IDAttribute(), members, records) {
		col.Reset(records)
		return modeReset, nil
	}

	for i, m := range members {
		m.Set(m.Parse(records[i]))
	}
	col.Synced(records)
	return modeSync, nil
}

// aligned reports whether records match members by position and identity.
func aligned(idAttr string, members []observer.Member, records []observer.Fields) bool {
	if len(members) == 0 || len(members) != len(records) {
		return false
	}
	for i, m := range members {
		if !observer.SameID(m.ID(), records[i][idAttr]) {
			return false
		}
	}
	return true
}
