package server

import (
	"context"
	"encoding/json"

	"github.com/kbrandt/gqltransport/protocol"
)

// ExecutionParams bundles what a caller-supplied Execute/Subscribe function
// needs to run one operation: the incoming subscribe payload plus the
// connection's accepted connectionParams.
type ExecutionParams struct {
	ID               string
	OperationName    string
	Query            string
	Variables        map[string]interface{}
	Extensions       map[string]interface{}
	ConnectionParams json.RawMessage
}

// ExecuteFunc runs a query or mutation to completion and returns a single
// result. The GraphQL engine itself -- parsing, validation, execution -- is
// the caller's concern; this is the seam a caller's engine plugs into.
type ExecuteFunc func(ctx context.Context, params ExecutionParams) (*protocol.ExecutionResult, error)

// SubscribeFunc starts a subscription and returns a lazy, pull-based,
// cancellable Subscription.
type SubscribeFunc func(ctx context.Context, params ExecutionParams) (Subscription, error)

// Subscription is the lazy asynchronous sequence an engine returns for a
// subscription operation. It models a "next() -> (value | end | error)"
// abstraction as a pull interface instead of a bare channel so that engines
// backed by any concurrency primitive can implement it.
type Subscription interface {
	// Next blocks until a result is available, the sequence ends (result
	// == nil, err == nil), or the source errors (err != nil). ctx may be
	// used to abandon the wait -- it does not by itself cancel the
	// subscription; call Close for that.
	Next(ctx context.Context) (*protocol.ExecutionResult, error)

	// Close cancels the subscription and releases its resources. Safe to
	// call more than once; no Next call is valid once Close has been
	// called.
	Close()
}
