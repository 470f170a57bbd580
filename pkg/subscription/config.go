package subscription

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamio/streamio-go/pkg/connection"
)

// Defaults.
const (
	DefaultExpire       = 2 * time.Hour
	DefaultGracePeriod  = 5 * time.Second
	DefaultFetchTimeout = 30 * time.Second
)

// Config configures a Registry.
type Config struct {
	// Expire is the lifetime of a persisted cache entry.
	Expire time.Duration

	// GracePeriod is how long a subscription without observers lingers
	// before it is released upstream.
	GracePeriod time.Duration

	// FetchTimeout bounds a single stream or unstream round trip.
	FetchTimeout time.Duration

	// Retry configures the backoff between timed-out fetches.
	Retry connection.BackoffConfig

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// OnError receives every non-fatal failure as a *Failure.
	OnError func(error)

	// OnFetchState is called for every fetch cycle transition, including
	// the abort of a cycle whose connection went away.
	OnFetchState func(url, event, from, to string)

	// Registerer receives the registry metrics. If nil, a private registry
	// is used.
	Registerer prometheus.Registerer

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		Expire:       DefaultExpire,
		GracePeriod:  DefaultGracePeriod,
		FetchTimeout: DefaultFetchTimeout,
		Retry:        connection.DefaultBackoffConfig(),
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Expire <= 0 {
		c.Expire = d.Expire
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = d.GracePeriod
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.Retry == (connection.BackoffConfig{}) {
		c.Retry = d.Retry
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// AddOptions overrides the per-observer defaults of Add. Nil fields keep
// the default.
type AddOptions struct {
	// Precache defaults to the observer's own preference.
	Precache *bool

	// Initial defaults to true: the first update always resets.
	Initial *bool
}

// resolvedOptions are AddOptions merged over the defaults.
type resolvedOptions struct {
	precache bool
	initial  bool
}

func resolveOptions(precache bool, opts *AddOptions) resolvedOptions {
	r := resolvedOptions{precache: precache, initial: true}
	if opts == nil {
		return r
	}
	if opts.Precache != nil {
		r.precache = *opts.Precache
	}
	if opts.Initial != nil {
		r.initial = *opts.Initial
	}
	return r
}
