package protocol

import (
	"bytes"
	"encoding/json"
)

// knownTypes is used to reject unknown message types before any field access.
var knownTypes = map[MessageType]bool{
	ConnectionInit: true,
	ConnectionAck:  true,
	Subscribe:      true,
	Next:           true,
	Error:          true,
	Complete:       true,
	Ping:           true,
	Pong:           true,
}

// Decode parses a text frame into a Message and validates its shape:
//   - the frame must be a single JSON object
//   - the type must be one of the known message types
//   - id must be present on operation-scoped types and absent otherwise
//
// On any violation it returns a *ProtocolError carrying the close code the
// caller should apply.
func Decode(data []byte) (*Message, error) {
	var msg Message
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return nil, NewProtocolError(CloseBadRequest, "malformed message: "+err.Error())
	}
	// Reject any trailing data/extra JSON values in the frame.
	if dec.More() {
		return nil, NewProtocolError(CloseBadRequest, "message frame must contain exactly one JSON object")
	}

	if !knownTypes[msg.Type] {
		return nil, NewProtocolError(CloseBadRequest, "unknown message type: "+string(msg.Type))
	}
	if IsOperationScoped(msg.Type) {
		if msg.ID == "" {
			return nil, NewProtocolError(CloseBadRequest, string(msg.Type)+" requires a non-empty id")
		}
	} else if msg.ID != "" {
		return nil, NewProtocolError(CloseBadRequest, string(msg.Type)+" must not carry an id")
	}
	return &msg, nil
}

// Encode serializes a Message to its wire (JSON) form.
func Encode(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}
