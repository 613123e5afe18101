// Package client implements the subscriber side of graphql-transport-ws:
// an open/listen/subscribe/close lifecycle built on the shared protocol and
// internal/transport packages, with automatic retry and backoff across
// reconnects.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/kbrandt/gqltransport/internal/transport"
	"github.com/kbrandt/gqltransport/protocol"
)

// errUserClosed marks a shutdown requested by Client.Close, which must not
// trigger a retry.
var errUserClosed = errors.New("client closed")

// errIdle marks a lazy teardown after the last subscription completed,
// which also must not trigger a retry.
var errIdle = errors.New("idle teardown")

type opEntry struct {
	sink    Sink
	payload protocol.SubscribePayload
	retry   bool
	sent    bool // false while only queued, not yet on the wire
}

// Client is a graphql-transport-ws subscriber. Use New to construct one.
type Client struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	started   bool
	phase     string
	transport transport.Transport
	sinks     map[string]*opEntry

	stopOnce sync.Once
}

// New creates a Client. If cfg.Lazy is false the connection is established
// immediately in the background; otherwise it is established on the first
// Subscribe call.
func New(cfg Config) *Client {
	cfg.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		sinks:  make(map[string]*opEntry),
		phase:  "disconnected",
	}
	if !*cfg.Lazy {
		c.ensureStarted()
	}
	return c
}

// Close tears down the connection and stops all retrying. Every sink still
// registered at that point gets its Complete callback invoked, as if the
// server had sent "complete" for it; no sink's Error callback is invoked.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		c.cancel()
	})
}

func (c *Client) ensureStarted() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()
	go c.runForever()
}

// Subscribe starts a new operation. The returned Subscription never errors
// synchronously; failures are reported through sink.Error.
func (c *Client) Subscribe(payload protocol.SubscribePayload, sink Sink) *Subscription {
	id := c.nextID()
	c.mu.Lock()
	c.sinks[id] = &opEntry{sink: sink, payload: payload, retry: true}
	t := c.transport
	ready := c.phase == "ready"
	c.mu.Unlock()

	c.ensureStarted()
	if ready && t != nil {
		c.sendSubscribe(t, id, payload)
	}
	return &Subscription{id: id, c: c}
}

func (c *Client) unsubscribe(id string) {
	c.mu.Lock()
	entry, ok := c.sinks[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.sinks, id)
	t := c.transport
	wasSent := entry.sent
	empty := len(c.sinks) == 0
	lazy := *c.cfg.Lazy
	c.mu.Unlock()

	if wasSent && t != nil {
		c.sendRaw(t, &protocol.Message{Type: protocol.Complete, ID: id})
	}
	if empty && lazy && t != nil {
		t.Close(protocol.CloseNormalClosure, "idle")
	}
}

// runForever owns the connect/handshake/dispatch/retry loop for the
// lifetime of the client.
func (c *Client) runForever() {
	attempt := 0
	for {
		if c.ctx.Err() != nil {
			c.finish(errUserClosed, transport.CloseEvent{})
			return
		}

		if c.cfg.On.Connecting != nil {
			c.cfg.On.Connecting()
		}

		ce, err := c.connectAndServe()

		if c.cfg.On.Closed != nil {
			c.cfg.On.Closed(ce)
		}

		if c.ctx.Err() != nil {
			c.finish(errUserClosed, ce)
			return
		}
		if errors.Is(err, errIdle) {
			c.setPhase("disconnected")
			c.mu.Lock()
			c.started = false
			c.mu.Unlock()
			return
		}
		if !c.cfg.ShouldRetry(ce) {
			c.finish(err, ce)
			return
		}
		if attempt >= c.cfg.RetryAttempts {
			c.finish(fmt.Errorf("retry attempts exhausted: %w", err), ce)
			return
		}

		c.setPhase("disconnected")
		wait := c.cfg.RetryWait(attempt)
		attempt++
		select {
		case <-time.After(wait):
		case <-c.ctx.Done():
			c.finish(errUserClosed, ce)
			return
		}
		c.requeueForRetry()
	}
}

// finish reports a terminal outcome to every remaining sink and empties the
// registry.
func (c *Client) finish(err error, ce transport.CloseEvent) {
	c.mu.Lock()
	sinks := c.sinks
	c.sinks = make(map[string]*opEntry)
	c.mu.Unlock()

	for _, entry := range sinks {
		if errors.Is(err, errUserClosed) {
			entry.sink.callComplete()
			continue
		}
		entry.sink.callError(fmt.Errorf("connection closed (code %d): %s", ce.Code, ce.Reason))
	}
}

// requeueForRetry marks every still-registered, retry-eligible operation as
// unsent so flushPending resends it with its existing id once the next
// connection reaches the ready phase.
func (c *Client) requeueForRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.sinks {
		if !entry.retry {
			delete(c.sinks, id)
			continue
		}
		entry.sent = false
	}
}

func (c *Client) setPhase(p string) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// connectAndServe performs one full connection lifecycle: dial, handshake,
// flush queued operations, dispatch frames until the socket closes.
func (c *Client) connectAndServe() (transport.CloseEvent, error) {
	dialer := *c.cfg.Dialer
	if len(dialer.Subprotocols) == 0 {
		dialer.Subprotocols = []string{protocol.Subprotocol}
	}

	conn, _, err := dialer.DialContext(c.ctx, c.cfg.URL, nil)
	if err != nil {
		return transport.CloseEvent{Code: protocol.CloseAbnormalClosure, Reason: err.Error()}, err
	}
	t := transport.NewWS(conn)
	c.mu.Lock()
	c.transport = t
	c.phase = "connecting"
	c.mu.Unlock()

	if err := c.handshake(t); err != nil {
		t.Close(protocol.CloseBadRequest, "handshake failed")
		return <-t.Closed(), err
	}

	if c.cfg.On.Connected != nil {
		c.cfg.On.Connected()
	}
	c.setPhase("ready")
	c.flushPending(t)

	return c.dispatch(t)
}

func (c *Client) handshake(t transport.Transport) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.AckWaitTimeout)
	defer cancel()

	var params interface{}
	var err error
	switch p := c.cfg.ConnectionParams.(type) {
	case nil:
		params = nil
	case ConnectionParamsFunc:
		params, err = p(ctx)
	default:
		params = p
	}
	if err != nil {
		return fmt.Errorf("connectionParams: %w", err)
	}

	initMsg := &protocol.Message{Type: protocol.ConnectionInit}
	if params != nil {
		initMsg.Payload, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal connectionParams: %w", err)
		}
	}
	if err := c.sendRaw(t, initMsg); err != nil {
		return err
	}

	data, err := t.Recv(ctx)
	if err != nil {
		return fmt.Errorf("waiting for connection_ack: %w", err)
	}
	msg, perr := protocol.Decode(data)
	if perr != nil {
		return perr
	}
	if msg.Type != protocol.ConnectionAck {
		return fmt.Errorf("expected connection_ack, got %s", msg.Type)
	}
	return nil
}

func (c *Client) flushPending(t transport.Transport) {
	c.mu.Lock()
	pending := make(map[string]protocol.SubscribePayload)
	for id, entry := range c.sinks {
		if !entry.sent {
			pending[id] = entry.payload
		}
	}
	c.mu.Unlock()

	for id, payload := range pending {
		c.sendSubscribe(t, id, payload)
	}
}

func (c *Client) sendSubscribe(t transport.Transport, id string, payload protocol.SubscribePayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.mu.Lock()
		entry := c.sinks[id]
		delete(c.sinks, id)
		c.mu.Unlock()
		if entry != nil {
			entry.sink.callError(fmt.Errorf("marshal subscribe payload: %w", err))
		}
		return
	}
	if c.sendRaw(t, &protocol.Message{Type: protocol.Subscribe, ID: id, Payload: data}) == nil {
		c.mu.Lock()
		if entry, ok := c.sinks[id]; ok {
			entry.sent = true
		}
		c.mu.Unlock()
	}
}

func (c *Client) sendRaw(t transport.Transport, msg *protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if c.cfg.On.Message != nil {
		c.cfg.On.Message(string(msg.Type), msg.ID)
	}
	return t.Send(c.ctx, data)
}

// dispatch reads frames until the transport closes, routing them to their
// sink. It returns the close event the transport reports.
func (c *Client) dispatch(t transport.Transport) (transport.CloseEvent, error) {
	frames := make(chan []byte)
	recvErr := make(chan error, 1)
	go func() {
		for {
			data, err := t.Recv(c.ctx)
			if err != nil {
				recvErr <- err
				return
			}
			frames <- data
		}
	}()

	var keepAlive *time.Ticker
	var keepAliveC <-chan time.Time
	if c.cfg.KeepAlive > 0 {
		keepAlive = time.NewTicker(c.cfg.KeepAlive)
		keepAliveC = keepAlive.C
		defer keepAlive.Stop()
	}

	for {
		select {
		case <-c.ctx.Done():
			t.Close(protocol.CloseNormalClosure, "client closing")
			return <-t.Closed(), nil
		case err := <-recvErr:
			if c.allSinksIdle() {
				return <-t.Closed(), errIdle
			}
			return <-t.Closed(), err
		case data := <-frames:
			if stop, idle := c.handleFrame(t, data); stop {
				if idle {
					return <-t.Closed(), errIdle
				}
				return <-t.Closed(), nil
			}
		case <-keepAliveC:
			c.sendRaw(t, &protocol.Message{Type: protocol.Ping})
		}
	}
}

func (c *Client) allSinksIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sinks) == 0
}

// handleFrame processes one inbound frame. stop tells dispatch to stop
// reading; idle distinguishes a self-triggered idle teardown from a
// protocol-error close.
func (c *Client) handleFrame(t transport.Transport, data []byte) (stop bool, idle bool) {
	msg, perr := protocol.Decode(data)
	if perr != nil {
		t.Close(perr.Code, perr.Reason)
		return true, false
	}
	if c.cfg.On.Message != nil {
		c.cfg.On.Message(string(msg.Type), msg.ID)
	}

	switch msg.Type {
	case protocol.Next:
		c.routeNext(msg)
	case protocol.Error:
		c.routeError(msg)
	case protocol.Complete:
		c.routeComplete(t, msg)
	case protocol.Ping:
		c.sendRaw(t, &protocol.Message{Type: protocol.Pong})
	case protocol.Pong:
		// no-op
	default:
		t.Close(protocol.CloseBadRequest, "unexpected message type")
		return true, false
	}
	return false, false
}

func (c *Client) routeNext(msg *protocol.Message) {
	c.mu.Lock()
	entry, ok := c.sinks[msg.ID]
	c.mu.Unlock()
	if !ok {
		return
	}
	var result protocol.ExecutionResult
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		entry.sink.callError(fmt.Errorf("decode next payload: %w", err))
		return
	}
	entry.sink.callNext(&result)
}

func (c *Client) routeError(msg *protocol.Message) {
	c.mu.Lock()
	entry, ok := c.sinks[msg.ID]
	if ok {
		delete(c.sinks, msg.ID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	var errs gqlerror.List
	if err := json.Unmarshal(msg.Payload, &errs); err != nil || len(errs) == 0 {
		entry.sink.callError(fmt.Errorf("operation error: %s", string(msg.Payload)))
		return
	}
	entry.sink.callError(errs)
}

func (c *Client) routeComplete(t transport.Transport, msg *protocol.Message) {
	c.mu.Lock()
	entry, ok := c.sinks[msg.ID]
	if ok {
		delete(c.sinks, msg.ID)
	}
	empty := len(c.sinks) == 0
	lazy := *c.cfg.Lazy
	c.mu.Unlock()
	if !ok {
		return
	}
	entry.sink.callComplete()
	if empty && lazy {
		t.Close(protocol.CloseNormalClosure, "idle")
	}
}
