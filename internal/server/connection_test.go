package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/posener/wstest"
	"github.com/stretchr/testify/require"

	"github.com/kbrandt/gqltransport/internal/server"
	"github.com/kbrandt/gqltransport/protocol"
)

// dial opens a graphql-transport-ws connection to h using posener/wstest, so
// tests run in-process without binding a real TCP port.
func dial(t *testing.T, h *server.Handler) *websocket.Conn {
	t.Helper()
	d := wstest.NewDialer(h)
	d.Subprotocols = []string{protocol.Subprotocol}
	conn, _, err := d.Dial("ws://test/graphql", nil)
	require.NoError(t, err)
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func recvMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func helloExecute(ctx context.Context, params server.ExecutionParams) (*protocol.ExecutionResult, error) {
	return &protocol.ExecutionResult{Data: map[string]interface{}{"hello": "Hello World!"}}, nil
}

func TestQueryRoundTrip(t *testing.T) {
	h := server.New(server.Config{Execute: helloExecute})
	conn := dial(t, h)
	defer conn.Close()

	sendJSON(t, conn, map[string]interface{}{"type": "connection_init"})
	ack := recvMessage(t, conn)
	require.Equal(t, protocol.ConnectionAck, ack.Type)

	sendJSON(t, conn, map[string]interface{}{
		"type": "subscribe", "id": "1",
		"payload": map[string]interface{}{"query": "{ hello }"},
	})

	next := recvMessage(t, conn)
	require.Equal(t, protocol.Next, next.Type)
	require.Equal(t, "1", next.ID)
	var result protocol.ExecutionResult
	require.NoError(t, json.Unmarshal(next.Payload, &result))
	require.Equal(t, "Hello World!", result.Data.(map[string]interface{})["hello"])

	complete := recvMessage(t, conn)
	require.Equal(t, protocol.Complete, complete.Type)
	require.Equal(t, "1", complete.ID)
}

// greetingsSubscription yields a fixed list of strings then ends.
type greetingsSubscription struct {
	items []string
	idx   int
}

func (s *greetingsSubscription) Next(ctx context.Context) (*protocol.ExecutionResult, error) {
	if s.idx >= len(s.items) {
		return nil, nil
	}
	v := s.items[s.idx]
	s.idx++
	return &protocol.ExecutionResult{Data: map[string]interface{}{"greetings": v}}, nil
}

func (s *greetingsSubscription) Close() {}

func TestSubscriptionStreaming(t *testing.T) {
	greetings := []string{"Hi", "Bonjour", "Hola", "Ciao", "Zdravo"}
	h := server.New(server.Config{
		Subscribe: func(ctx context.Context, params server.ExecutionParams) (server.Subscription, error) {
			return &greetingsSubscription{items: greetings}, nil
		},
	})
	conn := dial(t, h)
	defer conn.Close()

	sendJSON(t, conn, map[string]interface{}{"type": "connection_init"})
	recvMessage(t, conn) // ack

	sendJSON(t, conn, map[string]interface{}{
		"type": "subscribe", "id": "s1",
		"payload": map[string]interface{}{"query": "subscription { greetings }"},
	})

	for _, want := range greetings {
		msg := recvMessage(t, conn)
		require.Equal(t, protocol.Next, msg.Type)
		var result protocol.ExecutionResult
		require.NoError(t, json.Unmarshal(msg.Payload, &result))
		require.Equal(t, want, result.Data.(map[string]interface{})["greetings"])
	}
	complete := recvMessage(t, conn)
	require.Equal(t, protocol.Complete, complete.Type)
}

func TestDuplicateSubscriptionID(t *testing.T) {
	h := server.New(server.Config{
		Subscribe: func(ctx context.Context, params server.ExecutionParams) (server.Subscription, error) {
			return &blockingSubscription{done: make(chan struct{})}, nil
		},
	})
	conn := dial(t, h)
	defer conn.Close()

	sendJSON(t, conn, map[string]interface{}{"type": "connection_init"})
	recvMessage(t, conn)

	sendJSON(t, conn, map[string]interface{}{
		"type": "subscribe", "id": "x",
		"payload": map[string]interface{}{"query": "subscription { greetings }"},
	})
	sendJSON(t, conn, map[string]interface{}{
		"type": "subscribe", "id": "x",
		"payload": map[string]interface{}{"query": "subscription { greetings }"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	ce, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %T: %v", err, err)
	require.Equal(t, 4409, ce.Code)
}

func TestSubscribeBeforeInit(t *testing.T) {
	h := server.New(server.Config{Execute: helloExecute})
	conn := dial(t, h)
	defer conn.Close()

	sendJSON(t, conn, map[string]interface{}{
		"type": "subscribe", "id": "1",
		"payload": map[string]interface{}{"query": "{ hello }"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	ce, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	require.Equal(t, 4401, ce.Code)
}

func TestConnectionInitTimeout(t *testing.T) {
	h := server.New(server.Config{
		Execute:                   helloExecute,
		ConnectionInitWaitTimeout: 30 * time.Millisecond,
	})
	conn := dial(t, h)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	ce, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	require.Equal(t, 4408, ce.Code)
}

// blockingSubscription never yields until cancelled, used to test that a
// "complete" from the client stops the source promptly.
type blockingSubscription struct {
	done   chan struct{}
	closed bool
}

func (s *blockingSubscription) Next(ctx context.Context) (*protocol.ExecutionResult, error) {
	select {
	case <-s.done:
		return nil, fmt.Errorf("subscription closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *blockingSubscription) Close() {
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

func TestCancellationStopsSource(t *testing.T) {
	sub := &blockingSubscription{done: make(chan struct{})}
	h := server.New(server.Config{
		Execute: helloExecute,
		Subscribe: func(ctx context.Context, params server.ExecutionParams) (server.Subscription, error) {
			return sub, nil
		},
	})
	conn := dial(t, h)
	defer conn.Close()

	sendJSON(t, conn, map[string]interface{}{"type": "connection_init"})
	recvMessage(t, conn)

	sendJSON(t, conn, map[string]interface{}{
		"type": "subscribe", "id": "1",
		"payload": map[string]interface{}{"query": "subscription { greetings }"},
	})
	sendJSON(t, conn, map[string]interface{}{"type": "complete", "id": "1"})

	// No further message should arrive for id "1"; a second subscribe with
	// the same id must succeed immediately, proving the id was freed.
	sendJSON(t, conn, map[string]interface{}{
		"type": "subscribe", "id": "1",
		"payload": map[string]interface{}{"query": "{ hello }"},
	})

	select {
	case <-sub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("source was not closed after complete")
	}

	next := recvMessage(t, conn)
	require.Equal(t, protocol.Next, next.Type)
	require.Equal(t, "1", next.ID)
	var result protocol.ExecutionResult
	require.NoError(t, json.Unmarshal(next.Payload, &result))
	require.Equal(t, "Hello World!", result.Data.(map[string]interface{})["hello"])
}
