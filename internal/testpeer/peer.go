// Package testpeer provides an in-process upstream for tests.
//
// A Peer answers stream, unstream and sync frames from a table of
// resources. It can be bound directly to an interaction.Client or served
// over WebSocket with Handler.
package testpeer

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/streamio/streamio-go/pkg/wire"
)

// ErrUnknownResource is the ack error for streams of unknown urls.
var ErrUnknownResource = errors.New("unknown resource")

// Request is one decoded request frame received by the peer.
type Request struct {
	Kind wire.Kind
	ID   uint32
	URL  string
	Hash string
	Sync *wire.SyncRequest
}

// Deliver writes one frame back to a client.
type Deliver func(data []byte) error

type heldReply struct {
	deliver Deliver
	data    []byte
}

type resource struct {
	data any
	hash string
}

// Peer is a scripted upstream.
type Peer struct {
	mu sync.Mutex

	resources map[string]*resource
	requests  []Request

	// sinks receive pushes, keyed by registration order.
	sinks   map[int]Deliver
	sinkSeq int

	hold bool
	held []heldReply

	sendErr error
	onSync  func(*wire.SyncRequest) (any, error)
}

// New creates an empty peer.
func New() *Peer {
	return &Peer{
		resources: make(map[string]*resource),
		sinks:     make(map[int]Deliver),
	}
}

// HashOf returns the content hash the peer uses for data.
func HashOf(data any) string {
	raw, err := wire.Marshal(data)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(raw), 16)
}

// Set stores data for url and returns its hash.
func (p *Peer) Set(url string, data any) string {
	hash := HashOf(data)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resources[url] = &resource{data: data, hash: hash}
	return hash
}

// Hash returns the current hash of url.
func (p *Peer) Hash(url string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.resources[url]; ok {
		return r.hash
	}
	return ""
}

// Data returns the current data of url.
func (p *Peer) Data(url string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resources[url]
	if !ok {
		return nil, false
	}
	return r.data, true
}

// OnSync installs the handler for sync requests. Without one, sync
// requests are answered with their data.
func (p *Peer) OnSync(fn func(*wire.SyncRequest) (any, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSync = fn
}

// FailSends makes Send return err. A nil err restores normal operation.
func (p *Peer) FailSends(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendErr = err
}

// Hold queues replies instead of delivering them.
func (p *Peer) Hold() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hold = true
}

// Release delivers queued replies in order, stops holding and returns the
// number delivered.
func (p *Peer) Release() int {
	p.mu.Lock()
	held := p.held
	p.held = nil
	p.hold = false
	p.mu.Unlock()

	for _, h := range held {
		_ = h.deliver(h.data)
	}
	return len(held)
}

// Drop discards queued replies and returns how many were dropped.
func (p *Peer) Drop() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.held)
	p.held = nil
	return n
}

// Held returns the number of queued replies.
func (p *Peer) Held() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.held)
}

// Requests returns received requests of kind. Kind 0 returns all.
func (p *Peer) Requests(kind wire.Kind) []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Request
	for _, r := range p.requests {
		if kind == 0 || r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of received requests of kind.
func (p *Peer) Count(kind wire.Kind) int {
	return len(p.Requests(kind))
}

// Reset forgets recorded requests.
func (p *Peer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = nil
}

// Bind registers deliver as a push sink and returns a Link whose replies
// go to deliver. The returned function unregisters the sink.
func (p *Peer) Bind(deliver Deliver) (*Link, func()) {
	p.mu.Lock()
	p.sinkSeq++
	id := p.sinkSeq
	p.sinks[id] = deliver
	p.mu.Unlock()

	unbind := func() {
		p.mu.Lock()
		delete(p.sinks, id)
		p.mu.Unlock()
	}
	return &Link{peer: p, deliver: deliver}, unbind
}

// Link is the client side of a bound peer.
type Link struct {
	peer    *Peer
	deliver Deliver
}

// Send handles one request frame.
func (l *Link) Send(data []byte) error {
	return l.peer.handle(data, l.deliver)
}

// Push sends the current data of url to every sink.
func (p *Peer) Push(url string) error {
	p.mu.Lock()
	r, ok := p.resources[url]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownResource, url)
	}
	push := &wire.Push{URL: url, Hash: r.hash, Data: r.data}
	sinks := make([]Deliver, 0, len(p.sinks))
	for _, d := range p.sinks {
		sinks = append(sinks, d)
	}
	p.mu.Unlock()

	data, err := wire.EncodePush(push)
	if err != nil {
		return err
	}
	for _, d := range sinks {
		if err := d(data); err != nil {
			return err
		}
	}
	return nil
}

func (p *Peer) handle(data []byte, deliver Deliver) error {
	p.mu.Lock()
	if p.sendErr != nil {
		err := p.sendErr
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	msg, err := wire.Decode(data)
	if err != nil {
		return err
	}
	req := Request{Kind: msg.Kind, ID: msg.ID}

	var reply []byte
	switch msg.Kind {
	case wire.KindStream:
		var body wire.StreamRequest
		if err := msg.DecodePayload(&body); err != nil {
			return err
		}
		req.URL, req.Hash = body.URL, body.Hash
		reply, err = p.stream(msg.ID, &body)
	case wire.KindUnstream:
		var body wire.UnstreamRequest
		if err := msg.DecodePayload(&body); err != nil {
			return err
		}
		req.URL = body.URL
		reply, err = wire.EncodeAck(msg.ID, nil, nil)
	case wire.KindSync:
		body := &wire.SyncRequest{}
		if err := msg.DecodePayload(body); err != nil {
			return err
		}
		req.URL, req.Sync = body.URL, body
		reply, err = p.sync(msg.ID, body)
	default:
		return fmt.Errorf("unexpected %s frame", msg.Kind)
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.requests = append(p.requests, req)
	if p.hold {
		p.held = append(p.held, heldReply{deliver: deliver, data: reply})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return deliver(reply)
}

func (p *Peer) stream(id uint32, body *wire.StreamRequest) ([]byte, error) {
	p.mu.Lock()
	r, ok := p.resources[body.URL]
	var resp *wire.StreamResponse
	if ok {
		resp = &wire.StreamResponse{Hash: r.hash}
		if body.Hash != r.hash {
			resp.Data = r.data
		}
	}
	p.mu.Unlock()

	if !ok {
		return wire.EncodeAck(id, nil, fmt.Errorf("%w: %s", ErrUnknownResource, body.URL))
	}
	return wire.EncodeAck(id, resp, nil)
}

func (p *Peer) sync(id uint32, body *wire.SyncRequest) ([]byte, error) {
	p.mu.Lock()
	fn := p.onSync
	p.mu.Unlock()

	if fn == nil {
		return wire.EncodeAck(id, body.Data, nil)
	}
	result, err := fn(body)
	return wire.EncodeAck(id, result, err)
}
