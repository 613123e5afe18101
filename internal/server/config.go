package server

// config.go follows a functional-options shape: each With* function returns
// a closure capturing its argument, and setDefaults fills in any field left
// at its zero value.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kbrandt/gqltransport/protocol"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// ConnectResult is returned by an OnConnectFunc to accept a handshake,
// optionally echoing an ack payload.
type ConnectResult struct {
	AckPayload interface{}
}

// OnConnectFunc is invoked with the connection_init payload during the
// handshake. Returning a non-nil error rejects the handshake (close 4403
// Forbidden).
type OnConnectFunc func(ctx context.Context, connectionParams json.RawMessage) (*ConnectResult, error)

// OnSubscribeFunc may inspect or rewrite a subscribe message before the
// engine is invoked, or bypass the engine entirely by returning a
// precomputed result. At most one of precomputed/rewritten should be
// non-nil; returning a non-nil err rejects the operation with a GraphQL
// error message, leaving the connection open.
type OnSubscribeFunc func(ctx context.Context, params ExecutionParams) (precomputed *protocol.ExecutionResult, rewritten *ExecutionParams, err error)

// OnOperationFunc observes every subscribe message before it is dispatched
// to the engine.
type OnOperationFunc func(ctx context.Context, params ExecutionParams)

// OnNextFunc observes every "next" result before it is sent, and may
// replace it (e.g. to redact fields). Returning nil sends the original
// result unchanged.
type OnNextFunc func(ctx context.Context, id string, result *protocol.ExecutionResult) *protocol.ExecutionResult

// OnErrorFunc observes every "error" result before it is sent, and may
// replace it. Returning nil sends the original list unchanged.
type OnErrorFunc func(ctx context.Context, id string, errs gqlerror.List) gqlerror.List

// OnCompleteFunc observes every operation that ends with a "complete" message
// sent by the server, and every operation the client cancels with its own
// "complete". It is not called for operations that end with an "error"
// message (see OnErrorFunc) or that are cancelled because the connection
// closed.
type OnCompleteFunc func(ctx context.Context, id string)

// Config configures a server Connection.
type Config struct {
	// Schema is opaque to this package; it is made available to hooks via
	// closures rather than inspected here. Schema construction and document
	// execution are the caller's concern, plugged in through Execute and
	// Subscribe below.
	Schema interface{}

	Execute   ExecuteFunc
	Subscribe SubscribeFunc

	OnConnect   OnConnectFunc
	OnSubscribe OnSubscribeFunc
	OnOperation OnOperationFunc
	OnNext      OnNextFunc
	OnError     OnErrorFunc
	OnComplete  OnCompleteFunc

	// ConnectionInitWaitTimeout bounds how long to wait for connection_init
	// after the transport opens. Default 3s.
	ConnectionInitWaitTimeout time.Duration

	// KeepAlive, if non-zero, makes the connection send a proactive "ping"
	// on this interval once ready.
	KeepAlive time.Duration
}

// Option configures a Config; see the With* functions below.
type Option func(*Config)

func WithOnConnect(fn OnConnectFunc) Option       { return func(c *Config) { c.OnConnect = fn } }
func WithOnSubscribe(fn OnSubscribeFunc) Option   { return func(c *Config) { c.OnSubscribe = fn } }
func WithOnOperation(fn OnOperationFunc) Option   { return func(c *Config) { c.OnOperation = fn } }
func WithOnNext(fn OnNextFunc) Option             { return func(c *Config) { c.OnNext = fn } }
func WithOnError(fn OnErrorFunc) Option           { return func(c *Config) { c.OnError = fn } }
func WithOnComplete(fn OnCompleteFunc) Option     { return func(c *Config) { c.OnComplete = fn } }

func WithConnectionInitWaitTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectionInitWaitTimeout = d }
}

func WithKeepAlive(d time.Duration) Option {
	return func(c *Config) { c.KeepAlive = d }
}

const defaultConnectionInitWaitTimeout = 3 * time.Second

// setDefaults fills in zero-valued fields with documented defaults, after
// all options have run.
func (c *Config) setDefaults() {
	if c.ConnectionInitWaitTimeout == 0 {
		c.ConnectionInitWaitTimeout = defaultConnectionInitWaitTimeout
	}
}
