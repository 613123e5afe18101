package protocol_test

import (
	"testing"

	"github.com/kbrandt/gqltransport/protocol"
)

func TestDecodeValid(t *testing.T) {
	msg, err := protocol.Decode([]byte(`{"type":"subscribe","id":"1","payload":{"query":"{ hello }"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != protocol.Subscribe || msg.ID != "1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := protocol.Decode([]byte(`{"type":"bogus"}`))
	assertProtocolError(t, err, protocol.CloseBadRequest)
}

func TestDecodeMissingID(t *testing.T) {
	_, err := protocol.Decode([]byte(`{"type":"subscribe","payload":{"query":"{ hello }"}}`))
	assertProtocolError(t, err, protocol.CloseBadRequest)
}

func TestDecodeUnexpectedID(t *testing.T) {
	_, err := protocol.Decode([]byte(`{"type":"connection_init","id":"1"}`))
	assertProtocolError(t, err, protocol.CloseBadRequest)
}

func TestDecodeNotAnObject(t *testing.T) {
	_, err := protocol.Decode([]byte(`["not", "an", "object"]`))
	assertProtocolError(t, err, protocol.CloseBadRequest)
}

func TestDecodeTrailingData(t *testing.T) {
	_, err := protocol.Decode([]byte(`{"type":"ping"}{"type":"pong"}`))
	assertProtocolError(t, err, protocol.CloseBadRequest)
}

func assertProtocolError(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	pe, ok := err.(*protocol.ProtocolError)
	if !ok {
		t.Fatalf("expected *protocol.ProtocolError, got %T: %v", err, err)
	}
	if pe.Code != code {
		t.Fatalf("expected close code %d, got %d", code, pe.Code)
	}
}
