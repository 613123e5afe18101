// Package server implements the server side of the graphql-transport-ws
// protocol: per-socket handshake, message dispatch, and the operation
// registry.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/kbrandt/gqltransport/internal/transport"
	"github.com/kbrandt/gqltransport/protocol"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// opHandle is the registry's record of one active operation. It is the
// identity a running operation's goroutine uses to free its own entry when
// it finishes, so that a stale goroutine can never delete an entry that a
// later subscribe under the same id has since installed.
type opHandle struct {
	cancel context.CancelFunc
}

// Connection drives one socket through the handshake and then multiplexes
// operations over it until the transport closes.
type Connection struct {
	cfg Config
	t   transport.Transport

	connectionParams json.RawMessage

	opsMu sync.Mutex
	ops   map[string]*opHandle

	wg sync.WaitGroup
}

// Serve runs a Connection's full lifecycle: handshake then dispatch, until
// the transport closes or ctx is done. It blocks until the connection has
// fully wound down (all operation goroutines returned).
func Serve(ctx context.Context, cfg Config, t transport.Transport) {
	cfg.setDefaults()
	c := &Connection{
		cfg: cfg,
		t:   t,
		ops: make(map[string]*opHandle),
	}
	defer c.cleanup()

	if !c.handshake(ctx) {
		return
	}
	c.dispatchLoop(ctx)
}

// handshake waits for connection_init (bounded by ConnectionInitWaitTimeout),
// runs onConnect, and acks.
func (c *Connection) handshake(ctx context.Context) bool {
	initCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionInitWaitTimeout)
	defer cancel()

	data, err := c.t.Recv(initCtx)
	if err != nil {
		if initCtx.Err() != nil && ctx.Err() == nil {
			c.t.Close(protocol.CloseConnectionInitTimeout, "connection initialisation timeout")
		}
		return false
	}

	msg, perr := protocol.Decode(data)
	if perr != nil {
		pe := perr.(*protocol.ProtocolError)
		c.t.Close(pe.Code, pe.Reason)
		return false
	}

	if msg.Type != protocol.ConnectionInit {
		if protocol.IsOperationScoped(msg.Type) {
			c.t.Close(protocol.CloseUnauthorized, "connection not initialised")
		} else {
			c.t.Close(protocol.CloseBadRequest, "expected connection_init")
		}
		return false
	}

	var ack *ConnectResult
	if c.cfg.OnConnect != nil {
		ack, err = c.cfg.OnConnect(ctx, msg.Payload)
		if err != nil {
			c.t.Close(protocol.CloseForbidden, err.Error())
			return false
		}
	}
	c.connectionParams = msg.Payload

	ackMsg := &protocol.Message{Type: protocol.ConnectionAck}
	if ack != nil && ack.AckPayload != nil {
		if buf, err := json.Marshal(ack.AckPayload); err == nil {
			ackMsg.Payload = buf
		}
	}
	c.sendMessage(ctx, ackMsg)
	return true
}

// dispatchLoop reads frames (via a feeder goroutine) and handles them one at
// a time, interleaved with the optional keepalive ticker.
func (c *Connection) dispatchLoop(ctx context.Context) {
	frames := make(chan []byte)
	recvErr := make(chan error, 1)
	go func() {
		for {
			data, err := c.t.Recv(ctx)
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	var keepAlive <-chan time.Time
	if c.cfg.KeepAlive > 0 {
		ticker := time.NewTicker(c.cfg.KeepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-recvErr:
			return
		case data := <-frames:
			if !c.handleFrame(ctx, data) {
				return
			}
		case <-keepAlive:
			c.sendMessage(ctx, &protocol.Message{Type: protocol.Ping})
		}
	}
}

// handleFrame processes one inbound message. It returns false if the
// connection should stop (protocol violation or explicit close).
func (c *Connection) handleFrame(ctx context.Context, data []byte) bool {
	msg, perr := protocol.Decode(data)
	if perr != nil {
		pe := perr.(*protocol.ProtocolError)
		c.t.Close(pe.Code, pe.Reason)
		return false
	}

	switch msg.Type {
	case protocol.ConnectionInit:
		c.t.Close(protocol.CloseTooManyInitialisationReqs, "too many initialisation requests")
		return false

	case protocol.Subscribe:
		c.handleSubscribe(ctx, msg)
		return true

	case protocol.Complete:
		c.handleComplete(ctx, msg.ID)
		return true

	case protocol.Ping:
		c.sendMessage(ctx, &protocol.Message{Type: protocol.Pong})
		return true

	case protocol.Pong:
		// Optional keepalive reply; a missing pong is never a protocol
		// violation, so there is nothing to do here either.
		return true

	default:
		c.t.Close(protocol.CloseBadRequest, "unexpected message type: "+string(msg.Type))
		return false
	}
}

func (c *Connection) handleSubscribe(ctx context.Context, msg *protocol.Message) {
	if c.hasOp(msg.ID) {
		c.t.Close(protocol.CloseSubscriberAlreadyExists, "subscriber for "+msg.ID+" already exists")
		return
	}

	var payload protocol.SubscribePayload
	if msg.Payload != nil {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError(ctx, msg.ID, gqlerror.List{gqlerror.Errorf("invalid subscribe payload: %v", err)})
			return
		}
	}

	params := ExecutionParams{
		ID:               msg.ID,
		OperationName:    payload.OperationName,
		Query:            payload.Query,
		Variables:        payload.Variables,
		Extensions:       payload.Extensions,
		ConnectionParams: c.connectionParams,
	}

	if c.cfg.OnSubscribe != nil {
		precomputed, rewritten, err := c.cfg.OnSubscribe(ctx, params)
		if err != nil {
			c.sendError(ctx, msg.ID, gqlerror.List{gqlerror.Errorf("%v", err)})
			return
		}
		if rewritten != nil {
			params = *rewritten
		}
		if precomputed != nil {
			c.runPrecomputed(ctx, msg.ID, precomputed)
			return
		}
	}

	if c.cfg.OnOperation != nil {
		c.cfg.OnOperation(ctx, params)
	}

	kind, gerr := operationKind(params.Query, params.OperationName)
	if gerr != nil {
		c.sendError(ctx, msg.ID, gqlerror.List{gerr})
		return
	}

	opCtx, cancel := context.WithCancel(ctx)
	h := c.setOp(msg.ID, cancel)

	c.wg.Add(1)
	if kind == ast.Subscription {
		go c.runSubscription(opCtx, msg.ID, h, params)
	} else {
		go c.runExecute(opCtx, msg.ID, h, params)
	}
}

func (c *Connection) runPrecomputed(ctx context.Context, id string, result *protocol.ExecutionResult) {
	opCtx, cancel := context.WithCancel(ctx)
	h := c.setOp(id, cancel)
	defer func() {
		c.freeOp(id, h)
		cancel()
	}()
	c.sendNext(opCtx, id, result)
	c.sendComplete(opCtx, id)
}

// runExecute drives one query/mutation to completion.
func (c *Connection) runExecute(ctx context.Context, id string, h *opHandle, params ExecutionParams) {
	defer c.wg.Done()
	defer c.freeOp(id, h)

	if c.cfg.Execute == nil {
		c.sendError(ctx, id, gqlerror.List{gqlerror.Errorf("no Execute function configured")})
		return
	}
	result, err := c.cfg.Execute(ctx, params)
	if ctx.Err() != nil {
		return // caller sent complete -- no terminal message is re-echoed
	}
	if err != nil {
		c.sendError(ctx, id, gqlerror.List{gqlerror.Errorf("%v", err)})
		return
	}
	c.sendNext(ctx, id, result)
	c.sendComplete(ctx, id)
}

// runSubscription drives one subscription's lazy sequence to its end,
// forwarding every item as "next".
func (c *Connection) runSubscription(ctx context.Context, id string, h *opHandle, params ExecutionParams) {
	defer c.wg.Done()
	defer c.freeOp(id, h)

	if c.cfg.Subscribe == nil {
		c.sendError(ctx, id, gqlerror.List{gqlerror.Errorf("no Subscribe function configured")})
		return
	}
	sub, err := c.cfg.Subscribe(ctx, params)
	if ctx.Err() != nil {
		if sub != nil {
			sub.Close()
		}
		return
	}
	if err != nil {
		c.sendError(ctx, id, gqlerror.List{gqlerror.Errorf("%v", err)})
		return
	}
	defer sub.Close()

	for {
		result, err := sub.Next(ctx)
		if ctx.Err() != nil {
			return // caller sent complete -- no terminal message is re-echoed
		}
		if err != nil {
			c.sendError(ctx, id, gqlerror.List{gqlerror.Errorf("%v", err)})
			return
		}
		if result == nil {
			c.sendComplete(ctx, id)
			return
		}
		c.sendNext(ctx, id, result)
	}
}

// handleComplete cancels the operation currently registered under id and
// frees it immediately; an id with no active operation is ignored.
func (c *Connection) handleComplete(ctx context.Context, id string) {
	if cancel := c.takeOp(id); cancel != nil {
		cancel()
		if c.cfg.OnComplete != nil {
			c.cfg.OnComplete(ctx, id)
		}
	}
}

func (c *Connection) hasOp(id string) bool {
	c.opsMu.Lock()
	defer c.opsMu.Unlock()
	_, ok := c.ops[id]
	return ok
}

func (c *Connection) setOp(id string, cancel context.CancelFunc) *opHandle {
	c.opsMu.Lock()
	defer c.opsMu.Unlock()
	h := &opHandle{cancel: cancel}
	c.ops[id] = h
	return h
}

// freeOp removes id from the registry only if it still maps to h, the handle
// the caller's own operation was given at registration time. A resubscribe
// under the same id installs a new handle; this guards against a slow,
// still-unwinding operation's deferred cleanup evicting the replacement that
// has since taken its place.
func (c *Connection) freeOp(id string, h *opHandle) {
	c.opsMu.Lock()
	defer c.opsMu.Unlock()
	if c.ops[id] == h {
		delete(c.ops, id)
	}
}

// takeOp removes and returns the cancel func currently registered for id, or
// nil if absent.
func (c *Connection) takeOp(id string) context.CancelFunc {
	c.opsMu.Lock()
	defer c.opsMu.Unlock()
	h, ok := c.ops[id]
	if !ok {
		return nil
	}
	delete(c.ops, id)
	return h.cancel
}

// cleanup empties the operation registry and waits for all runner goroutines
// to notice their context was cancelled.
func (c *Connection) cleanup() {
	c.opsMu.Lock()
	for id, h := range c.ops {
		h.cancel()
		delete(c.ops, id)
	}
	c.opsMu.Unlock()
	c.wg.Wait()
	c.t.Close(protocol.CloseNormalClosure, "")
}

func (c *Connection) sendNext(ctx context.Context, id string, result *protocol.ExecutionResult) {
	if c.cfg.OnNext != nil {
		if replaced := c.cfg.OnNext(ctx, id, result); replaced != nil {
			result = replaced
		}
	}
	payload, err := json.Marshal(result)
	if err != nil {
		log.Println("server: error marshaling next payload:", err)
		return
	}
	c.sendMessage(ctx, &protocol.Message{Type: protocol.Next, ID: id, Payload: payload})
}

func (c *Connection) sendError(ctx context.Context, id string, errs gqlerror.List) {
	if c.cfg.OnError != nil {
		if replaced := c.cfg.OnError(ctx, id, errs); replaced != nil {
			errs = replaced
		}
	}
	payload, err := json.Marshal(errs)
	if err != nil {
		log.Println("server: error marshaling error payload:", err)
		return
	}
	c.sendMessage(ctx, &protocol.Message{Type: protocol.Error, ID: id, Payload: payload})
}

func (c *Connection) sendComplete(ctx context.Context, id string) {
	if c.cfg.OnComplete != nil {
		c.cfg.OnComplete(ctx, id)
	}
	c.sendMessage(ctx, &protocol.Message{Type: protocol.Complete, ID: id})
}

func (c *Connection) sendMessage(ctx context.Context, msg *protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Println("server: error encoding message:", err)
		return
	}
	if err := c.t.Send(ctx, data); err != nil {
		log.Println("server: error sending message:", err)
	}
}
