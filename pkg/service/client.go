package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamio/streamio-go/pkg/connection"
	"github.com/streamio/streamio-go/pkg/discovery"
	"github.com/streamio/streamio-go/pkg/identity"
	"github.com/streamio/streamio-go/pkg/interaction"
	"github.com/streamio/streamio-go/pkg/log"
	"github.com/streamio/streamio-go/pkg/store"
	"github.com/streamio/streamio-go/pkg/subscription"
	"github.com/streamio/streamio-go/pkg/transport"
)

// Resolver finds the upstream when no URL is configured.
type Resolver interface {
	Resolve(ctx context.Context) (*discovery.Upstream, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Transport configures the dialer. An empty URL means resolve the
	// upstream with Resolver.
	Transport transport.Config

	// Resolver defaults to an mDNS browser built from Discovery.
	Resolver  Resolver
	Discovery discovery.BrowserConfig

	// Reconnect paces redials after a loss.
	Reconnect connection.BackoffConfig

	Registry subscription.Config

	// Store defaults to an in-memory store.
	Store store.Store

	// User overrides the user taken from Transport.Token.
	User string

	// Capture receives protocol events. nil disables capture.
	Capture log.Logger

	// Logger is the optional logger. If nil, logging is disabled.
	Logger *slog.Logger
}

// Client is a running channel client.
type Client struct {
	mu sync.RWMutex

	config   ClientConfig
	state    ServiceState
	store    store.Store
	calls    *interaction.Client
	registry *subscription.Registry
	manager  *connection.Manager
	resolver Resolver

	dialer *transport.Dialer
	conn   *transport.Conn

	// pending is the conn dialed by connect and not yet handed over.
	pending *transport.Conn

	eventHandlers []EventHandler

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewClient creates a client. Nothing is dialed until Start.
func NewClient(config ClientConfig) (*Client, error) {
	config.Capture = log.OrNoop(config.Capture)
	config.Transport.Capture = config.Capture
	if config.Transport.Logger == nil {
		config.Transport.Logger = config.Logger
	}

	c := &Client{
		config:   config,
		state:    StateIdle,
		store:    config.Store,
		calls:    interaction.NewClient(nil),
		resolver: config.Resolver,
	}
	if c.store == nil {
		c.store = store.NewMemoryStore()
	}
	if c.resolver == nil && config.Transport.URL == "" {
		bc := config.Discovery
		if bc.Logger == nil {
			bc.Logger = config.Logger
		}
		c.resolver = discovery.NewMDNSBrowser(bc)
	}
	if config.Transport.URL != "" {
		d, err := transport.NewDialer(config.Transport)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.dialer = d
	}

	regConfig := config.Registry
	if regConfig.Logger == nil {
		regConfig.Logger = config.Logger
	}
	onError := regConfig.OnError
	regConfig.OnError = func(err error) {
		if onError != nil {
			onError(err)
		}
		c.emit(Event{Type: EventFailure, Error: err})
	}
	onFetchState := regConfig.OnFetchState
	regConfig.OnFetchState = func(url, event, from, to string) {
		if onFetchState != nil {
			onFetchState(url, event, from, to)
		}
		c.onFetchState(url, event, from, to)
	}
	if regConfig.FetchTimeout > 0 {
		c.calls.SetTimeout(regConfig.FetchTimeout)
	}
	c.registry = subscription.NewRegistry(c.store, c.calls, regConfig)

	c.manager = connection.NewManager(c.connect, connection.ManagerConfig{
		Backoff:        config.Reconnect,
		ConnectTimeout: config.Transport.HandshakeTimeout + config.Discovery.BrowseTimeout,
		Logger:         config.Logger,
	}, connection.Handlers{
		OnStateChange:  c.onStateChange,
		OnConnected:    c.onConnected,
		OnDisconnected: c.onDisconnected,
		OnReconnecting: func(attempt int, delay time.Duration) {
			c.emit(Event{Type: EventReconnecting, Attempt: attempt, Delay: delay})
		},
	})

	return c, nil
}

// State returns the current service state.
func (c *Client) State() ServiceState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ConnectionState returns the state of the upstream channel.
func (c *Client) ConnectionState() connection.State {
	return c.manager.State()
}

// Registry returns the subscription registry.
func (c *Client) Registry() *subscription.Registry {
	return c.registry
}

// URL returns the upstream URL, empty until it is known.
func (c *Client) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.dialer == nil {
		return ""
	}
	return c.dialer.URL()
}

// OnEvent registers an event handler.
func (c *Client) OnEvent(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHandlers = append(c.eventHandlers, handler)
}

// SetUser changes the current user.
func (c *Client) SetUser(userID string) {
	if c.registry.User() == userID {
		return
	}
	c.registry.SetUser(userID)
	c.emit(Event{Type: EventUserChanged, UserID: userID})
}

// Start initializes the store, resolves the current user and begins
// dialing in the background.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = StateStarting
	c.mu.Unlock()

	if err := c.store.Initialize(ctx); err != nil {
		c.setState(StateIdle)
		return fmt.Errorf("initialize store: %w", err)
	}

	if user := c.initialUser(); user != "" {
		c.SetUser(user)
	}

	c.mu.Lock()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.group, c.ctx = errgroup.WithContext(c.ctx)
	group, runCtx := c.group, c.ctx
	c.state = StateRunning
	c.mu.Unlock()

	group.Go(func() error {
		err := c.manager.Run(runCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return nil
}

// Wait blocks until the client stops and returns the first background
// error.
func (c *Client) Wait() error {
	c.mu.RLock()
	group := c.group
	c.mu.RUnlock()
	if group == nil {
		return ErrNotStarted
	}
	return group.Wait()
}

// Stop disconnects and releases all resources. Observers stay attached
// but receive no further updates.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.state = StateStopping
	cancel, group := c.cancel, c.group
	c.mu.Unlock()

	cancel()
	err := group.Wait()

	if s, ok := c.resolver.(interface{ Stop() }); ok {
		s.Stop()
	}
	_ = c.registry.Close()
	_ = c.calls.Close()

	c.setState(StateStopped)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// initialUser prefers the configured user over the token.
func (c *Client) initialUser() string {
	if c.config.User != "" {
		return c.config.User
	}
	if c.config.Transport.Token == "" {
		return ""
	}
	user, err := identity.UserFromToken(c.config.Transport.Token)
	if err != nil {
		c.debugLog("service: no user in token", "error", err)
		return ""
	}
	return user
}

// connect is the dial step of the connection manager.
func (c *Client) connect(ctx context.Context) error {
	dialer, err := c.currentDialer(ctx)
	if err != nil {
		return err
	}

	conn, err := dialer.Dial(ctx)
	if err != nil {
		if c.config.Transport.URL == "" {
			// Forget the discovered upstream so the next attempt resolves again.
			c.mu.Lock()
			c.dialer = nil
			c.mu.Unlock()
		}
		return err
	}

	c.mu.Lock()
	c.pending = conn
	c.mu.Unlock()
	return nil
}

func (c *Client) currentDialer(ctx context.Context) (*transport.Dialer, error) {
	c.mu.RLock()
	dialer := c.dialer
	c.mu.RUnlock()
	if dialer != nil {
		return dialer, nil
	}

	up, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve upstream: %w", err)
	}

	tc := c.config.Transport
	tc.URL = up.URL()
	dialer, err = transport.NewDialer(tc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.dialer = dialer
	c.mu.Unlock()
	c.emit(Event{Type: EventUpstreamDiscovered, URL: tc.URL})
	return dialer, nil
}

// onConnected hands the new conn to the registry and starts reading.
func (c *Client) onConnected() {
	c.mu.Lock()
	conn := c.pending
	c.pending = nil
	c.conn = conn
	group, ctx := c.group, c.ctx
	url := ""
	if c.dialer != nil {
		url = c.dialer.URL()
	}
	c.mu.Unlock()
	if conn == nil {
		return
	}

	if c.config.Logger != nil {
		c.config.Logger.Info("service: connected", "url", url, "connID", conn.ID())
	}
	c.registry.Connected(conn)
	c.emit(Event{Type: EventConnected, URL: url})

	group.Go(func() error {
		err := conn.Run(ctx, c.calls.HandleFrame)
		c.debugLog("service: read loop ended", "connID", conn.ID(), "error", err)
		c.manager.NotifyConnectionLost()
		return nil
	})
}

// onDisconnected runs once per lost or closed channel.
func (c *Client) onDisconnected() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.registry.Disconnected()
	if conn != nil {
		_ = conn.Close()
	}
	if c.config.Logger != nil {
		c.config.Logger.Info("service: disconnected")
	}
	c.emit(Event{Type: EventDisconnected, URL: c.URL()})
}

func (c *Client) onStateChange(oldState, newState connection.State) {
	c.config.Capture.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		UserID:    c.registry.User(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState.String(),
			NewState: newState.String(),
		},
	})
}

func (c *Client) onFetchState(url, event, from, to string) {
	c.config.Capture.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityFetch,
			OldState: from,
			NewState: to,
			Reason:   event,
			URL:      url,
		},
	})
}

func (c *Client) setState(s ServiceState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Client) emit(ev Event) {
	c.mu.RLock()
	handlers := append([]EventHandler(nil), c.eventHandlers...)
	c.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (c *Client) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}
