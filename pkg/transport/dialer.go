package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamio/streamio-go/pkg/log"
	"github.com/streamio/streamio-go/pkg/version"
)

// Dialer defaults.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultMaxMessageSize   = 16 << 20
)

// ErrMissingURL is returned when no upstream URL is configured.
var ErrMissingURL = errors.New("upstream URL is required")

// Config configures a Dialer.
type Config struct {
	// URL is the ws:// or wss:// endpoint of the upstream.
	URL string

	// Token is sent as a bearer token during the handshake.
	Token string

	// Header carries extra handshake headers.
	Header http.Header

	// TLS secures wss:// connections. nil uses the system defaults.
	TLS *TLSConfig

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// MaxMessageSize limits inbound messages. Larger ones close the
	// connection.
	MaxMessageSize int64

	KeepAlive KeepAliveConfig

	// Capture receives every frame in both directions. nil disables capture.
	Capture log.Logger

	// Logger is used for connection diagnostics. If nil, logging is disabled.
	Logger *slog.Logger
}

// Dialer opens WebSocket connections to the upstream.
type Dialer struct {
	config Config
	ws     *websocket.Dialer
}

// NewDialer creates a dialer. TLS files are loaded once here.
func NewDialer(config Config) (*Dialer, error) {
	if config.URL == "" {
		return nil, ErrMissingURL
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	config.KeepAlive = config.KeepAlive.withDefaults()
	config.Capture = log.OrNoop(config.Capture)

	tlsConfig, err := NewClientTLSConfig(config.TLS)
	if err != nil {
		return nil, err
	}

	return &Dialer{
		config: config,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			TLSClientConfig:  tlsConfig,
			Subprotocols:     version.SupportedSubprotocols(),
		},
	}, nil
}

// URL returns the configured upstream endpoint.
func (d *Dialer) URL() string {
	return d.config.URL
}

// Dial opens a connection. The returned Conn does nothing until Run is
// called.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	header := d.config.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if d.config.Token != "" {
		header.Set("Authorization", "Bearer "+d.config.Token)
	}

	ws, resp, err := d.ws.DialContext(ctx, d.config.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", d.config.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.config.URL, err)
	}

	if err := version.Check(ws.Subprotocol()); err != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "incompatible subprotocol"),
			time.Now().Add(time.Second))
		ws.Close()
		return nil, err
	}

	ws.SetReadLimit(d.config.MaxMessageSize)
	c := newConn(ws, d.config)
	c.debugLog("transport: connected", "url", d.config.URL, "subprotocol", ws.Subprotocol())
	return c, nil
}
