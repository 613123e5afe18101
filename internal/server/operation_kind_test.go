package server

import "testing"

func TestOperationKindQuery(t *testing.T) {
	kind, err := operationKind("{ hello }", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != "query" {
		t.Fatalf("expected query, got %v", kind)
	}
}

func TestOperationKindSubscription(t *testing.T) {
	kind, err := operationKind("subscription { greetings }", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != "subscription" {
		t.Fatalf("expected subscription, got %v", kind)
	}
}

func TestOperationKindNamedSelection(t *testing.T) {
	query := `query A { hello } mutation B { noop }`
	kind, err := operationKind(query, "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != "mutation" {
		t.Fatalf("expected mutation, got %v", kind)
	}
}

func TestOperationKindAmbiguousWithoutName(t *testing.T) {
	query := `query A { hello } mutation B { noop }`
	if _, err := operationKind(query, ""); err == nil {
		t.Fatal("expected an error when operationName is required but missing")
	}
}

func TestOperationKindUnknownName(t *testing.T) {
	if _, err := operationKind("query A { hello }", "NotThere"); err == nil {
		t.Fatal("expected an error for an unknown operation name")
	}
}
