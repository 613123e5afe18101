package main

import (
	"context"
	"sync"
	"time"

	"github.com/kbrandt/gqltransport"
)

// rooms.go is the toy domain model: an in-memory chat history plus
// broadcast fan-out per room. There is no schema/resolver machinery here;
// Execute/Subscribe in main.go talk to it directly.
type chatMessage struct {
	Room string    `json:"room"`
	User string    `json:"user"`
	Text string    `json:"text"`
	Sent time.Time `json:"sentAt"`
}

type roomRegistry struct {
	mu      sync.Mutex
	history map[string][]chatMessage
	subs    map[string]map[chan chatMessage]struct{}
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{
		history: make(map[string][]chatMessage),
		subs:    make(map[string]map[chan chatMessage]struct{}),
	}
}

func (r *roomRegistry) post(msg chatMessage) {
	r.mu.Lock()
	r.history[msg.Room] = append(r.history[msg.Room], msg)
	subs := make([]chan chatMessage, 0, len(r.subs[msg.Room]))
	for ch := range r.subs[msg.Room] {
		subs = append(subs, ch)
	}
	r.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- msg:
		default: // slow subscriber, drop rather than block the poster
		}
	}
}

func (r *roomRegistry) messages(room string) []chatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chatMessage, len(r.history[room]))
	copy(out, r.history[room])
	return out
}

func (r *roomRegistry) subscribe(room string) chan chatMessage {
	ch := make(chan chatMessage, 16)
	r.mu.Lock()
	if r.subs[room] == nil {
		r.subs[room] = make(map[chan chatMessage]struct{})
	}
	r.subs[room][ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

func (r *roomRegistry) unsubscribe(room string, ch chan chatMessage) {
	r.mu.Lock()
	delete(r.subs[room], ch)
	r.mu.Unlock()
}

// messageFeed adapts a room subscription to server.Subscription's lazy
// pull-based source, pulling from the per-subscriber channel set up by
// subscribe.
type messageFeed struct {
	registry *roomRegistry
	room     string
	ch       chan chatMessage
	closeMu  sync.Mutex
	closed   bool
}

func (f *messageFeed) Next(ctx context.Context) (*gqltransport.ExecutionResult, error) {
	select {
	case msg, ok := <-f.ch:
		if !ok {
			return nil, nil
		}
		return &gqltransport.ExecutionResult{Data: map[string]interface{}{"messageAdded": msg}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *messageFeed) Close() {
	f.closeMu.Lock()
	defer f.closeMu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.registry.unsubscribe(f.room, f.ch)
}
