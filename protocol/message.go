// Package protocol implements the wire format of the graphql-transport-ws
// sub-protocol: message shape, validation, close codes and the subprotocol
// name. It has no knowledge of transports or connection state machines --
// see internal/transport, internal/server and internal/client for those.
package protocol

import "encoding/json"

// Subprotocol is the WebSocket subprotocol name both peers MUST negotiate.
const Subprotocol = "graphql-transport-ws"

// MessageType is the discriminant of a protocol Message.
type MessageType string

const (
	ConnectionInit MessageType = "connection_init"
	ConnectionAck  MessageType = "connection_ack"
	Subscribe      MessageType = "subscribe"
	Next           MessageType = "next"
	Error          MessageType = "error"
	Complete       MessageType = "complete"
	Ping           MessageType = "ping"
	Pong           MessageType = "pong"
)

// operationScoped lists the message types that carry a non-empty id.
var operationScoped = map[MessageType]bool{
	Subscribe: true,
	Next:      true,
	Error:     true,
	Complete:  true,
}

// Message is the discriminated record {type, id?, payload?} that every
// frame on the wire carries. Payload is left as raw JSON here; callers
// decode it into the shape that matches Type (SubscribePayload for
// Subscribe, ExecutionResult for Next, gqlerror.List for Error, and an
// optional caller-defined object for ConnectionInit, ConnectionAck, Ping and
// Pong; Complete carries none).
type Message struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IsOperationScoped reports whether messages of this type must carry an id.
func IsOperationScoped(t MessageType) bool {
	return operationScoped[t]
}
