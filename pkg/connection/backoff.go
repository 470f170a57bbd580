package connection

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff defaults.
const (
	// InitialBackoff is the first delay.
	InitialBackoff = 1 * time.Second

	// MaxBackoff caps the base delay.
	MaxBackoff = 60 * time.Second

	// BackoffMultiplier is the growth factor between attempts.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of the base delay.
	JitterFactor = 0.25
)

// BackoffConfig allows customizing backoff parameters.
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

// DefaultBackoffConfig returns the default backoff parameters.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    InitialBackoff,
		Max:        MaxBackoff,
		Multiplier: BackoffMultiplier,
		Jitter:     JitterFactor,
	}
}

// normalized replaces unusable values with defaults.
func (c BackoffConfig) normalized() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Base returns the delay before jitter for the given attempt, counting
// from zero.
func (c BackoffConfig) Base(attempt int) time.Duration {
	c = c.normalized()
	d := float64(c.Initial) * math.Pow(c.Multiplier, float64(attempt))
	if d >= float64(c.Max) {
		return c.Max
	}
	return time.Duration(d)
}

// Backoff hands out growing delays. It is safe for concurrent use.
type Backoff struct {
	mu       sync.Mutex
	cfg      BackoffConfig
	attempts int
}

// NewBackoff creates a backoff with the default parameters.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(DefaultBackoffConfig())
}

// NewBackoffWithConfig creates a backoff with custom parameters. Zero or
// invalid fields fall back to the defaults.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	return &Backoff{cfg: cfg.normalized()}
}

// Next returns the next delay with jitter and counts an attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.jittered(b.cfg.Base(b.attempts))
	b.attempts++
	return d
}

// Peek returns the next delay with jitter without counting an attempt.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jittered(b.cfg.Base(b.attempts))
}

// Current returns the next base delay without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Base(b.attempts)
}

// Reset starts over from the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

func (b *Backoff) jittered(d time.Duration) time.Duration {
	if b.cfg.Jitter == 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.cfg.Jitter*rand.Float64())
}
