package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/streamio/streamio-go/pkg/interaction"
	"github.com/streamio/streamio-go/pkg/log"
	"github.com/streamio/streamio-go/pkg/wire"
)

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")
	ErrAlreadyRunning   = errors.New("connection is already running")
)

// FrameHandler processes one inbound frame. An error is logged and the
// connection keeps reading.
type FrameHandler func(data []byte) error

// Conn is an established upstream connection.
type Conn struct {
	id     string
	ws     *websocket.Conn
	config Config

	writeMu sync.Mutex

	mu      sync.Mutex
	running bool
	cause   error

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, config Config) *Conn {
	return &Conn{
		id:     uuid.New().String(),
		ws:     ws,
		config: config,
		done:   make(chan struct{}),
	}
}

// ID identifies the connection in captured events.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the upstream address.
func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send writes one frame as a binary message.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.ws.WriteMessage(websocket.BinaryMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.captureError("send", err)
		return fmt.Errorf("write frame: %w", err)
	}

	c.capture(log.DirectionOut, data)
	return nil
}

// Run reads frames and hands them to handler until ctx is done, the peer
// closes the connection, or keep-alive fails. It always closes the
// connection before returning and reports why it ended.
func (c *Conn) Run(ctx context.Context, handler FrameHandler) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ka := NewKeepAlive(c.config.KeepAlive, c.ping, func() {
		c.debugLog("transport: keep-alive timeout", "connID", c.id)
		c.fail(ErrKeepAliveTimeout)
	})
	c.ws.SetPongHandler(func(appData string) error {
		c.captureControl(log.DirectionIn, log.ControlPong, nil)
		if seq, err := strconv.ParseUint(appData, 10, 32); err == nil {
			ka.PongReceived(uint32(seq))
		}
		return nil
	})
	go ka.Run(ctx)

	go func() {
		select {
		case <-ctx.Done():
			c.fail(ctx.Err())
		case <-c.done:
		}
	}()

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(c.readError(err))
			return c.err()
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		c.capture(log.DirectionIn, data)
		if err := handler(data); err != nil {
			c.debugLog("transport: frame rejected", "connID", c.id, "error", err)
			c.captureError("handle", err)
		}
	}
}

// Close sends a normal close message and closes the connection.
func (c *Conn) Close() error {
	c.fail(ErrConnectionClosed)
	return nil
}

// Err returns why the connection closed, or nil while it is open.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err()
	default:
		return nil
	}
}

func (c *Conn) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// fail records cause and tears the connection down once.
func (c *Conn) fail(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.cause = cause
		c.mu.Unlock()

		code := websocket.CloseNormalClosure
		if errors.Is(cause, ErrKeepAliveTimeout) {
			code = websocket.CloseGoingAway
		}
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.captureControl(log.DirectionOut, log.ControlClose, &code)

		_ = c.ws.Close()
		close(c.done)
	})
}

func (c *Conn) readError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		code := closeErr.Code
		c.captureControl(log.DirectionIn, log.ControlClose, &code)
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return err
}

func (c *Conn) ping(seq uint32) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	err := c.ws.WriteControl(websocket.PingMessage,
		[]byte(strconv.FormatUint(uint64(seq), 10)),
		time.Now().Add(c.config.WriteTimeout))
	if err == nil {
		c.captureControl(log.DirectionOut, log.ControlPing, nil)
	}
	return err
}

// capture records a frame at the transport layer and, if it decodes, at
// the wire layer.
func (c *Conn) capture(dir log.Direction, data []byte) {
	now := time.Now()
	c.config.Capture.Log(log.Event{
		Timestamp:    now,
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		RemoteAddr:   c.RemoteAddr(),
		Frame:        log.NewFrameEvent(data, log.DefaultMaxFrameBytes),
	})

	msg, err := wire.Decode(data)
	if err != nil {
		return
	}
	c.config.Capture.Log(log.Event{
		Timestamp:    now,
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Message:      log.NewMessageEvent(msg),
	})
}

func (c *Conn) captureControl(dir log.Direction, typ log.ControlType, code *int) {
	c.config.Capture.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		Control:      &log.ControlEvent{Type: typ, CloseCode: code},
	})
}

func (c *Conn) captureError(op string, err error) {
	c.config.Capture.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		Error: &log.ErrorEvent{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: op,
		},
	})
}

func (c *Conn) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}

var _ interaction.Sender = (*Conn)(nil)
