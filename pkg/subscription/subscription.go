package subscription

import (
	"slices"
	"time"

	"github.com/streamio/streamio-go/pkg/connection"
	"github.com/streamio/streamio-go/pkg/observer"
)

// attachment is one observer attached to a subscription.
type attachment struct {
	obs      observer.Observer
	initial  bool
	detached bool
}

// subscription is the registry state of one resource. Guarded by the
// registry lock.
type subscription struct {
	url     string
	clients []*attachment

	cache    any
	hasCache bool
	revision string
	precache bool

	// inflight is the session of the outstanding fetch, 0 if none.
	inflight uint64

	// state is the fetch cycle state, empty before the first cycle.
	state string

	backoff *connection.Backoff
}

func newSubscription(url string, precache bool, retry connection.BackoffConfig) *subscription {
	return &subscription{
		url:      url,
		precache: precache,
		backoff:  connection.NewBackoffWithConfig(retry),
	}
}

func (s *subscription) detach(clientID string) *attachment {
	for i, att := range s.clients {
		if att.obs.ClientID() == clientID {
			s.clients = slices.Delete(s.clients, i, i+1)
			return att
		}
	}
	return nil
}

// attachments returns a copy of the client list.
func (s *subscription) attachments() []*attachment {
	return slices.Clone(s.clients)
}

func (s *subscription) setCache(data any) {
	s.cache = data
	s.hasCache = true
}

func (s *subscription) clearCache() {
	s.cache = nil
	s.hasCache = false
}

// Info is a read-only view of a subscription.
type Info struct {
	URL       string
	Clients   []string
	Cached    bool
	Revision  string
	Precache  bool
	Updating  bool
	Releasing bool

	// State is the state of the latest fetch cycle.
	State string

	// ReleaseIn is the time left before an unobserved subscription is
	// released. Zero unless Releasing.
	ReleaseIn time.Duration
}
