package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Connection errors.
var (
	ErrManagerClosed  = errors.New("connection manager closed")
	ErrAlreadyRunning = errors.New("connection manager already running")
)

// DefaultConnectTimeout bounds a single dial.
const DefaultConnectTimeout = 30 * time.Second

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no channel and no dial in progress.
	StateDisconnected State = iota

	// StateConnecting indicates the first dial is in progress.
	StateConnecting

	// StateConnected indicates an open channel.
	StateConnected

	// StateReconnecting indicates the channel was lost and the manager is
	// backing off or redialing.
	StateReconnecting

	// StateClosed indicates the manager has stopped.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc dials the upstream. It returns nil once the channel is open.
type ConnectFunc func(ctx context.Context) error

// Handlers are the lifecycle callbacks of a Manager. All are optional and
// run on the manager goroutine.
type Handlers struct {
	OnStateChange  func(oldState, newState State)
	OnConnected    func()
	OnDisconnected func()
	OnReconnecting func(attempt int, delay time.Duration)
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Backoff paces redials.
	Backoff BackoffConfig

	// ConnectTimeout bounds a single dial. Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Manager dials the upstream and keeps redialing while it runs.
type Manager struct {
	mu sync.RWMutex

	state    State
	running  bool
	backoff  *Backoff
	connect  ConnectFunc
	config   ManagerConfig
	handlers Handlers

	// lost is signalled when the open channel goes away.
	lost chan struct{}
}

// NewManager creates a connection manager.
func NewManager(connect ConnectFunc, config ManagerConfig, handlers Handlers) *Manager {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	return &Manager{
		state:    StateDisconnected,
		backoff:  NewBackoffWithConfig(config.Backoff),
		connect:  connect,
		config:   config,
		handlers: handlers,
		lost:     make(chan struct{}, 1),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected returns true if currently connected.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Attempts returns the number of failed dials since the last success.
func (m *Manager) Attempts() int {
	return m.backoff.Attempts()
}

// NotifyConnectionLost tells the manager the open channel went away. It is
// a no-op unless connected.
func (m *Manager) NotifyConnectionLost() {
	if !m.transition(StateConnected, StateReconnecting) {
		return
	}
	if m.handlers.OnDisconnected != nil {
		m.handlers.OnDisconnected()
	}
	select {
	case m.lost <- struct{}{}:
	default:
	}
}

// Run dials and redials until ctx is cancelled. It returns ctx.Err() and
// leaves the manager closed.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()

	defer m.close()

	m.setState(StateConnecting)
	for {
		if err := m.dialUntilConnected(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			if m.transition(StateConnected, StateClosed) && m.handlers.OnDisconnected != nil {
				m.handlers.OnDisconnected()
			}
			return ctx.Err()
		case <-m.lost:
			m.debugLog("connection: channel lost, redialing")
		}
	}
}

// dialUntilConnected dials with backoff until one attempt succeeds.
func (m *Manager) dialUntilConnected(ctx context.Context) error {
	for {
		dctx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
		err := m.connect(dctx)
		cancel()

		if err == nil {
			m.backoff.Reset()
			m.setState(StateConnected)
			if m.handlers.OnConnected != nil {
				m.handlers.OnConnected()
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.setState(StateReconnecting)
		delay := m.backoff.Next()
		attempt := m.backoff.Attempts()
		m.debugLog("connection: dial failed", "attempt", attempt, "delay", delay, "error", err)
		if m.handlers.OnReconnecting != nil {
			m.handlers.OnReconnecting(attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *Manager) close() {
	m.setState(StateClosed)
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// transition moves from -> to and reports whether the manager was in from.
func (m *Manager) transition(from, to State) bool {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return false
	}
	m.state = to
	m.mu.Unlock()

	if m.handlers.OnStateChange != nil {
		m.handlers.OnStateChange(from, to)
	}
	return true
}

func (m *Manager) setState(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	if from != to && m.handlers.OnStateChange != nil {
		m.handlers.OnStateChange(from, to)
	}
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, args...)
	}
}
