package gqltransport

// server.go re-exports internal/server's public surface at the module
// root as "type ServerConfig = server.Config"-style aliases, so callers only
// need the one top-level import.

import (
	"net/http"

	"github.com/kbrandt/gqltransport/internal/server"
)

type (
	// ServerConfig configures a server-side connection handler.
	ServerConfig = server.Config

	// ExecutionParams describes one subscribe/query/mutation request.
	ExecutionParams = server.ExecutionParams

	// ExecuteFunc runs a query or mutation to completion.
	ExecuteFunc = server.ExecuteFunc

	// SubscribeFunc starts a subscription and returns its Subscription
	// source.
	SubscribeFunc = server.SubscribeFunc

	// OnConnectFunc authenticates/inspects a connection_init payload.
	OnConnectFunc = server.OnConnectFunc

	// Subscription is a lazy, pull-based, cancellable source of results.
	Subscription = server.Subscription

	// ConnectResult is returned by an OnConnect hook.
	ConnectResult = server.ConnectResult

	ServerOption = server.Option
)

var (
	WithOnConnect                 = server.WithOnConnect
	WithOnSubscribe               = server.WithOnSubscribe
	WithOnOperation               = server.WithOnOperation
	WithOnNext                    = server.WithOnNext
	WithOnError                   = server.WithOnError
	WithOnComplete                = server.WithOnComplete
	WithConnectionInitWaitTimeout = server.WithConnectionInitWaitTimeout
	WithServerKeepAlive           = server.WithKeepAlive
)

// NewServer builds an http.Handler that upgrades requests to
// graphql-transport-ws connections.
func NewServer(cfg ServerConfig, opts ...ServerOption) http.Handler {
	for _, opt := range opts {
		opt(&cfg)
	}
	return server.New(cfg)
}
