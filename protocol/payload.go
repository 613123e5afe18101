package protocol

import "github.com/vektah/gqlparser/v2/gqlerror"

// SubscribePayload is the payload of a "subscribe" message.
type SubscribePayload struct {
	OperationName string                 `json:"operationName,omitempty"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	Extensions    map[string]interface{} `json:"extensions,omitempty"`
}

// ExecutionResult is the payload of a "next" message, and is also what the
// caller-supplied Execute/Subscribe functions return. The engine that
// actually parses, validates and executes GraphQL documents lives outside
// this package; Errors reuses gqlparser's error list type directly so the
// wire-level {message, locations, path, extensions} shape doesn't need to
// be reinvented.
type ExecutionResult struct {
	Data       interface{}            `json:"data,omitempty"`
	Errors     gqlerror.List          `json:"errors,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}
