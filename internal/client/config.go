package client

// config.go configures a Client using the same functional-options shape as
// internal/server/config.go.

import (
	"context"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbrandt/gqltransport/internal/transport"
)

// ConnectionParamsFunc lazily produces the connectionParams payload sent
// with connection_init, so callers can refresh a token on every (re)connect.
type ConnectionParamsFunc func(ctx context.Context) (interface{}, error)

// CloseEvent is re-exported for callers that need to inspect
// ShouldRetry/On.Closed without importing internal/transport directly.
type CloseEvent = transport.CloseEvent

// EventHooks are optional observers of connection lifecycle events.
type EventHooks struct {
	Connecting func()
	Connected  func()
	Closed     func(CloseEvent)
	Message    func(messageType string, id string)
}

// Config configures a Client.
type Config struct {
	URL string

	// ConnectionParams may be a plain JSON-marshalable value or a
	// ConnectionParamsFunc.
	ConnectionParams interface{}

	// Lazy controls whether the connection is established on the first
	// Subscribe call (true, the default) or eagerly on NewClient (false).
	Lazy *bool

	RetryAttempts int
	RetryWait     func(attempt int) time.Duration
	ShouldRetry   func(CloseEvent) bool

	On EventHooks

	Dialer *websocket.Dialer

	GenerateID func() string

	// KeepAlive, if non-zero, makes the client send its own proactive pings
	// on this interval. Server pings are answered with a pong regardless of
	// this setting.
	KeepAlive time.Duration

	// AckWaitTimeout bounds how long to wait for connection_ack after
	// connection_init. Default 3s.
	AckWaitTimeout time.Duration
}

type Option func(*Config)

func WithConnectionParams(v interface{}) Option { return func(c *Config) { c.ConnectionParams = v } }

func WithLazy(lazy bool) Option { return func(c *Config) { c.Lazy = &lazy } }

func WithRetryAttempts(n int) Option { return func(c *Config) { c.RetryAttempts = n } }

func WithRetryWait(fn func(attempt int) time.Duration) Option {
	return func(c *Config) { c.RetryWait = fn }
}

func WithShouldRetry(fn func(CloseEvent) bool) Option { return func(c *Config) { c.ShouldRetry = fn } }

func WithEventHooks(hooks EventHooks) Option { return func(c *Config) { c.On = hooks } }

func WithDialer(d *websocket.Dialer) Option { return func(c *Config) { c.Dialer = d } }

func WithGenerateID(fn func() string) Option { return func(c *Config) { c.GenerateID = fn } }

func WithKeepAlive(d time.Duration) Option { return func(c *Config) { c.KeepAlive = d } }

func WithAckWaitTimeout(d time.Duration) Option { return func(c *Config) { c.AckWaitTimeout = d } }

const (
	defaultRetryAttempts  = 5
	defaultAckWaitTimeout = 3 * time.Second
)

// defaultRetryWait implements an exponential backoff with jitter:
// min(1000 * 2^attempt, 7000) ± jitter.
func defaultRetryWait(attempt int) time.Duration {
	baseMs := 1000 * (1 << uint(attempt))
	if baseMs > 7000 {
		baseMs = 7000
	}
	jitterMs := rand.Intn(baseMs/2 + 1) // +/- up to a quarter of base, kept non-negative
	if rand.Intn(2) == 0 {
		baseMs -= jitterMs / 2
	} else {
		baseMs += jitterMs / 2
	}
	if baseMs < 0 {
		baseMs = 0
	}
	return time.Duration(baseMs) * time.Millisecond
}

func defaultShouldRetry(ce CloseEvent) bool {
	switch ce.Code {
	case 1000, 1001, 1011, 4400, 4401, 4409, 4429:
		return false
	}
	if ce.Code >= 4000 && ce.Code > 4499 {
		return false
	}
	return true
}

func (c *Config) setDefaults() {
	if c.Lazy == nil {
		lazy := true
		c.Lazy = &lazy
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryWait == nil {
		c.RetryWait = defaultRetryWait
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = defaultShouldRetry
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.GenerateID == nil {
		c.GenerateID = defaultGenerateID
	}
	if c.AckWaitTimeout == 0 {
		c.AckWaitTimeout = defaultAckWaitTimeout
	}
}
