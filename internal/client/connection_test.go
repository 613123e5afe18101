package client_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/posener/wstest"
	"github.com/stretchr/testify/require"

	"github.com/kbrandt/gqltransport/internal/client"
	"github.com/kbrandt/gqltransport/internal/server"
	"github.com/kbrandt/gqltransport/protocol"
)

// dialerFor wires a Client's dialer straight at an in-process server
// handler via posener/wstest (grounded on internal/server's own test use
// of the same library, extended to the client side).
func dialerFor(h *server.Handler) *websocket.Dialer {
	d := wstest.NewDialer(h)
	d.Subprotocols = []string{protocol.Subprotocol}
	return d
}

func TestQueryRoundTrip(t *testing.T) {
	h := server.New(server.Config{
		Execute: func(ctx context.Context, params server.ExecutionParams) (*protocol.ExecutionResult, error) {
			return &protocol.ExecutionResult{Data: map[string]interface{}{"hello": "world"}}, nil
		},
	})

	c := client.New(client.Config{
		URL:    "ws://test/graphql",
		Dialer: dialerFor(h),
	})
	defer c.Close()

	var mu sync.Mutex
	var got map[string]interface{}
	done := make(chan struct{})

	c.Subscribe(protocol.SubscribePayload{Query: "{ hello }"}, client.Sink{
		Next: func(r *protocol.ExecutionResult) {
			mu.Lock()
			got, _ = r.Data.(map[string]interface{})
			mu.Unlock()
		},
		Complete: func() { close(done) },
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "world", got["hello"])
}

func TestSubscriptionStreaming(t *testing.T) {
	h := server.New(server.Config{
		Subscribe: func(ctx context.Context, params server.ExecutionParams) (server.Subscription, error) {
			return &countingSubscription{max: 3}, nil
		},
	})

	c := client.New(client.Config{
		URL:    "ws://test/graphql",
		Dialer: dialerFor(h),
	})
	defer c.Close()

	var mu sync.Mutex
	var received int
	done := make(chan struct{})

	c.Subscribe(protocol.SubscribePayload{Query: "subscription { tick }"}, client.Sink{
		Next: func(r *protocol.ExecutionResult) {
			mu.Lock()
			received++
			mu.Unlock()
		},
		Complete: func() { close(done) },
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, received)
}

// countingSubscription yields a fixed number of ticks then ends.
type countingSubscription struct {
	max, n int
}

func (s *countingSubscription) Next(ctx context.Context) (*protocol.ExecutionResult, error) {
	if s.n >= s.max {
		return nil, nil
	}
	s.n++
	return &protocol.ExecutionResult{Data: map[string]interface{}{"tick": s.n}}, nil
}

func (s *countingSubscription) Close() {}
