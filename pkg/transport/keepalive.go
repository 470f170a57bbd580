package transport

import (
	"context"
	"sync"
	"time"
)

// Keep-alive defaults.
const (
	DefaultPingInterval   = 30 * time.Second
	DefaultPongTimeout    = 5 * time.Second
	DefaultMaxMissedPongs = 3
)

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	MaxMissedPongs int           `yaml:"max_missed_pongs"`
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

func (c KeepAliveConfig) withDefaults() KeepAliveConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.MaxMissedPongs <= 0 {
		c.MaxMissedPongs = DefaultMaxMissedPongs
	}
	return c
}

// DetectionDelay is the longest a dead connection can go unnoticed.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	c = c.withDefaults()
	return c.PingInterval*time.Duration(c.MaxMissedPongs) + c.PongTimeout
}

// KeepAlive sends numbered pings and declares the peer dead after too many
// unanswered ones.
type KeepAlive struct {
	config    KeepAliveConfig
	sendPing  func(seq uint32) error
	onTimeout func()
	onPong    func(seq uint32, latency time.Duration)

	mu       sync.Mutex
	seq      uint32
	pending  bool
	sentAt   time.Time
	missed   int
	lastPong time.Time
}

// NewKeepAlive creates a keep-alive monitor.
func NewKeepAlive(config KeepAliveConfig, sendPing func(seq uint32) error, onTimeout func()) *KeepAlive {
	return &KeepAlive{
		config:    config.withDefaults(),
		sendPing:  sendPing,
		onTimeout: onTimeout,
	}
}

// OnPong sets a callback for matched pongs.
func (ka *KeepAlive) OnPong(fn func(seq uint32, latency time.Duration)) {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.onPong = fn
}

// Run pings until ctx is done or the peer times out.
func (ka *KeepAlive) Run(ctx context.Context) {
	ticker := time.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()

	ka.ping()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ka.expired() {
				if ka.onTimeout != nil {
					ka.onTimeout()
				}
				return
			}
			ka.ping()
		}
	}
}

// PongReceived records a pong. Pongs for anything but the outstanding ping
// are ignored.
func (ka *KeepAlive) PongReceived(seq uint32) {
	ka.mu.Lock()
	now := time.Now()
	ka.lastPong = now
	if !ka.pending || seq != ka.seq {
		ka.mu.Unlock()
		return
	}
	ka.pending = false
	ka.missed = 0
	latency := now.Sub(ka.sentAt)
	cb := ka.onPong
	ka.mu.Unlock()

	if cb != nil {
		cb(seq, latency)
	}
}

// Missed returns the number of consecutive missed pongs.
func (ka *KeepAlive) Missed() int {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.missed
}

// expired counts a missed pong if the outstanding ping is overdue and
// reports whether the limit was reached.
func (ka *KeepAlive) expired() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	if ka.pending && time.Since(ka.sentAt) >= ka.config.PongTimeout {
		ka.pending = false
		ka.missed++
	}
	return ka.missed >= ka.config.MaxMissedPongs
}

func (ka *KeepAlive) ping() {
	ka.mu.Lock()
	ka.seq++
	seq := ka.seq
	ka.pending = true
	ka.sentAt = time.Now()
	ka.mu.Unlock()

	// A failed send shows up as a missed pong.
	_ = ka.sendPing(seq)
}
