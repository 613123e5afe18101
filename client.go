package gqltransport

import (
	"github.com/kbrandt/gqltransport/internal/client"
	"github.com/kbrandt/gqltransport/protocol"
)

type (
	// ClientConfig configures a Client.
	ClientConfig = client.Config

	// ClientOption is a functional option for ClientConfig.
	ClientOption = client.Option

	// ConnectionParamsFunc lazily produces a connection_init payload.
	ConnectionParamsFunc = client.ConnectionParamsFunc

	// CloseEvent describes why a client connection closed.
	CloseEvent = client.CloseEvent

	// EventHooks observes client connection lifecycle events.
	EventHooks = client.EventHooks

	// Sink receives results for one subscription.
	Sink = client.Sink

	// Subscription is the handle returned by Client.Subscribe.
	Subscription = client.Subscription

	// SubscribePayload is the query/variables/operationName sent with a
	// subscribe message.
	SubscribePayload = protocol.SubscribePayload

	// ExecutionResult is a GraphQL-shaped {data, errors, extensions}
	// result.
	ExecutionResult = protocol.ExecutionResult
)

var (
	WithConnectionParams = client.WithConnectionParams
	WithLazy             = client.WithLazy
	WithRetryAttempts    = client.WithRetryAttempts
	WithRetryWait        = client.WithRetryWait
	WithShouldRetry      = client.WithShouldRetry
	WithEventHooks       = client.WithEventHooks
	WithDialer           = client.WithDialer
	WithGenerateID       = client.WithGenerateID
	WithClientKeepAlive  = client.WithKeepAlive
	WithAckWaitTimeout   = client.WithAckWaitTimeout
)

// Client is a graphql-transport-ws subscriber.
type Client = client.Client

// NewClient creates a Client.
func NewClient(cfg ClientConfig, opts ...ClientOption) *Client {
	for _, opt := range opts {
		opt(&cfg)
	}
	return client.New(cfg)
}
