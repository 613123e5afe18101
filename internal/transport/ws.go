package transport

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// sendBufferSize bounds how many outbound frames may be queued before Send
// starts applying backpressure to the caller.
const sendBufferSize = 64

// writeDeadline bounds how long a single frame write may take before the
// connection is considered dead.
const writeDeadline = 10 * time.Second

// wsTransport adapts a *websocket.Conn to the Transport interface, following
// the readLoop/writeLoop/outgoing-channel shape of
// graphqltransportws.Connection in the ccbrown/api-fu reference, but without
// any protocol-level knowledge: it moves raw text frames only.
type wsTransport struct {
	conn *websocket.Conn

	outgoing chan []byte
	recv     chan recvResult

	closeRequest chan closeRequest
	closeOnce    sync.Once

	readLoopDone  chan struct{}
	writeLoopDone chan struct{}
	closedCh      chan CloseEvent

	closeMu    sync.Mutex
	peerClosed bool
	peerCode   int
	peerReason string
	localClose *closeRequest
}

type recvResult struct {
	data []byte
	err  error
}

type closeRequest struct {
	code   int
	reason string
}

// NewWS wraps an already-upgraded *websocket.Conn as a Transport and starts
// its read/write pumps. The caller must not use conn directly afterwards.
func NewWS(conn *websocket.Conn) Transport {
	t := &wsTransport{
		conn:          conn,
		outgoing:      make(chan []byte, sendBufferSize),
		recv:          make(chan recvResult),
		closeRequest:  make(chan closeRequest, 1),
		readLoopDone:  make(chan struct{}),
		writeLoopDone: make(chan struct{}),
		closedCh:      make(chan CloseEvent, 1),
	}
	conn.SetCloseHandler(func(code int, reason string) error {
		t.closeMu.Lock()
		t.peerClosed = true
		t.peerCode = code
		t.peerReason = reason
		t.closeMu.Unlock()
		return nil
	})
	go t.readLoop()
	go t.writeLoop()
	return t
}

func (t *wsTransport) Send(ctx context.Context, data []byte) error {
	select {
	case t.outgoing <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.writeLoopDone:
		return ErrClosed
	}
}

func (t *wsTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case r, ok := <-t.recv:
		if !ok {
			return nil, ErrClosed
		}
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *wsTransport) Close(code int, reason string) error {
	t.closeOnce.Do(func() {
		t.closeRequest <- closeRequest{code: code, reason: reason}
	})
	return nil
}

func (t *wsTransport) Closed() <-chan CloseEvent {
	return t.closedCh
}

func (t *wsTransport) readLoop() {
	defer close(t.readLoopDone)
	defer close(t.recv)

	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			select {
			case t.recv <- recvResult{err: ErrClosed}:
			case <-t.writeLoopDone:
			}
			return
		}
		select {
		case t.recv <- recvResult{data: data}:
		case <-t.writeLoopDone:
			return
		}
	}
}

func (t *wsTransport) writeLoop() {
	defer t.finishClosing()
	defer close(t.writeLoopDone)
	defer t.conn.Close()

	for {
		select {
		case data := <-t.outgoing:
			if err := t.write(data); err != nil {
				return
			}
		case req := <-t.closeRequest:
			t.drainAndClose(req)
			return
		case <-t.readLoopDone:
			// Peer closed (or read errored) without us requesting a close.
			return
		}
	}
}

func (t *wsTransport) write(data []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Println("transport: write error:", err)
		return err
	}
	return nil
}

// drainAndClose flushes any already-queued outbound frames (so that, e.g., a
// final "error" message is not lost) before sending the close control frame.
func (t *wsTransport) drainAndClose(req closeRequest) {
	t.closeMu.Lock()
	t.localClose = &req
	t.closeMu.Unlock()
	for {
		select {
		case data := <-t.outgoing:
			_ = t.write(data)
			continue
		default:
		}
		break
	}
	t.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(req.code, req.reason))
	select {
	case <-t.readLoopDone:
	case <-time.After(time.Second):
	}
}

func (t *wsTransport) finishClosing() {
	t.closeMu.Lock()
	code, reason, wasClean := websocket.CloseAbnormalClosure, "", false
	switch {
	case t.peerClosed:
		code, reason, wasClean = t.peerCode, t.peerReason, true
	case t.localClose != nil:
		code, reason, wasClean = t.localClose.code, t.localClose.reason, true
	}
	t.closeMu.Unlock()
	select {
	case t.closedCh <- CloseEvent{Code: code, Reason: reason, WasClean: wasClean}:
	default:
	}
}
