package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamio/streamio-go/pkg/wire"
)

// DefaultTimeout bounds a single round trip.
const DefaultTimeout = 30 * time.Second

// Client errors.
var (
	ErrRequestTimeout  = errors.New("request timed out")
	ErrClientClosed    = errors.New("client is closed")
	ErrDisconnected    = errors.New("channel disconnected")
	ErrNoConnection    = errors.New("no channel attached")
	ErrUnexpectedReply = errors.New("unexpected reply")
	ErrRemote          = errors.New("upstream rejected request")
)

// Sender writes one encoded frame to the channel.
type Sender interface {
	Send(data []byte) error
}

// RemoteError is an ack that carried an error string.
type RemoteError struct {
	Kind    wire.Kind
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is makes errors.Is(err, ErrRemote) match.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// reply resolves a pending call.
type reply struct {
	msg *wire.Message
	err error
}

// Client correlates requests with acks.
type Client struct {
	mu sync.RWMutex

	sender  Sender
	timeout time.Duration

	// Message ID generator
	nextMsgID uint32

	// Pending calls awaiting an ack, keyed by message id
	pending   map[uint32]chan reply
	pendingMu sync.Mutex

	pushHandler func(*wire.Push)

	closed bool
}

// NewClient creates a ledger. sender may be nil until Attach.
func NewClient(sender Sender) *Client {
	return &Client{
		sender:  sender,
		timeout: DefaultTimeout,
		pending: make(map[uint32]chan reply),
	}
}

// SetTimeout sets the round-trip timeout. Zero disables it.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// SetPushHandler sets the handler for unsolicited pushes.
func (c *Client) SetPushHandler(handler func(*wire.Push)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushHandler = handler
}

// Attach makes sender the outbound channel.
func (c *Client) Attach(sender Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = sender
}

// Detach drops the outbound channel. Pending calls are left alone; use
// FailAll to resolve them.
func (c *Client) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = nil
}

// Connected reports whether a channel is attached.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sender != nil && !c.closed
}

// Pending returns the number of unresolved calls.
func (c *Client) Pending() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

// FailAll resolves every pending call with err and returns how many were
// failed.
func (c *Client) FailAll(err error) int {
	c.pendingMu.Lock()
	waiters := c.pending
	c.pending = make(map[uint32]chan reply)
	c.pendingMu.Unlock()

	for _, ch := range waiters {
		ch <- reply{err: err}
	}
	return len(waiters)
}

// Close closes the client and fails all pending calls.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.sender = nil
	c.mu.Unlock()

	c.FailAll(ErrClientClosed)
	return nil
}

// nextMessageID generates the next unique message ID. Zero is reserved for
// pushes and skipped on wrap-around.
func (c *Client) nextMessageID() uint32 {
	for {
		if id := atomic.AddUint32(&c.nextMsgID, 1); id != wire.PushMessageID {
			return id
		}
	}
}

// take removes and returns the waiter for id.
func (c *Client) take(id uint32) (chan reply, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return ch, ok
}

// sendRequest sends a request and waits for its ack.
func (c *Client) sendRequest(ctx context.Context, kind wire.Kind, payload any) (*wire.Message, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrClientClosed
	}
	sender := c.sender
	timeout := c.timeout
	c.mu.RUnlock()

	if sender == nil {
		return nil, ErrNoConnection
	}

	id := c.nextMessageID()
	msg, err := wire.NewMessage(kind, id, payload)
	if err != nil {
		return nil, err
	}
	data, err := wire.Encode(msg)
	if err != nil {
		return nil, err
	}

	// Buffered so the resolver never blocks.
	ch := make(chan reply, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := sender.Send(data); err != nil {
		c.take(id)
		return nil, fmt.Errorf("send %s: %w", kind, err)
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-ch:
		return r.msg, r.err
	case <-ctx.Done():
		c.take(id)
		return nil, ctx.Err()
	case <-expired:
		c.take(id)
		return nil, ErrRequestTimeout
	}
}

// request sends a request and turns an error ack into a RemoteError.
func (c *Client) request(ctx context.Context, kind wire.Kind, payload any) (*wire.Message, error) {
	ack, err := c.sendRequest(ctx, kind, payload)
	if err != nil {
		return nil, err
	}
	if ack.Error != "" {
		return nil, &RemoteError{Kind: kind, Message: ack.Error}
	}
	return ack, nil
}

// Stream asks the upstream for url. hash is the fingerprint of the cached
// copy, empty when there is none.
func (c *Client) Stream(ctx context.Context, url, hash string) (*wire.StreamResponse, error) {
	ack, err := c.request(ctx, wire.KindStream, &wire.StreamRequest{URL: url, Hash: hash})
	if err != nil {
		return nil, err
	}
	resp := &wire.StreamResponse{}
	if err := ack.DecodePayload(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Unstream releases url upstream.
func (c *Client) Unstream(ctx context.Context, url string) error {
	_, err := c.request(ctx, wire.KindUnstream, &wire.UnstreamRequest{URL: url})
	return err
}

// Sync sends a write operation and returns the ack payload.
func (c *Client) Sync(ctx context.Context, req *wire.SyncRequest) (any, error) {
	ack, err := c.request(ctx, wire.KindSync, req)
	if err != nil {
		return nil, err
	}
	var result any
	if err := ack.DecodePayload(&result); err != nil {
		return nil, err
	}
	return result, nil
}

// HandleFrame dispatches one inbound frame.
func (c *Client) HandleFrame(data []byte) error {
	msg, err := wire.Decode(data)
	if err != nil {
		return err
	}
	switch {
	case msg.Kind == wire.KindAck:
		return c.HandleAck(msg)
	case msg.IsPush():
		return c.handlePush(msg)
	default:
		return fmt.Errorf("%w: %s frame with id %d", ErrUnexpectedReply, msg.Kind, msg.ID)
	}
}

// HandleAck resolves the pending call matching msg.ID. Acks for unknown or
// already resolved calls are reported as ErrUnexpectedReply.
func (c *Client) HandleAck(msg *wire.Message) error {
	ch, ok := c.take(msg.ID)
	if !ok {
		return fmt.Errorf("%w: ack %d", ErrUnexpectedReply, msg.ID)
	}
	ch <- reply{msg: msg}
	return nil
}

func (c *Client) handlePush(msg *wire.Message) error {
	push := &wire.Push{}
	if err := msg.DecodePayload(push); err != nil {
		return err
	}
	if push.URL == "" {
		return wire.ErrMissingURL
	}

	c.mu.RLock()
	handler := c.pushHandler
	c.mu.RUnlock()

	if handler != nil {
		handler(push)
	}
	return nil
}
