package server

// operation_kind.go determines whether a subscribe message's query is a
// query, mutation, or subscription, using gqlparser to parse (but not
// validate against a schema) the document. Dispatch needs the operation
// kind before it can decide whether to call Execute or Subscribe.

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// operationKind parses (but does not validate against a schema) the query
// document to find the ast.Operation of the operation named by
// operationName, or the sole operation if the document defines only one and
// operationName is empty.
func operationKind(query, operationName string) (ast.Operation, *gqlerror.Error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "subscribe", Input: query})
	if err != nil {
		return "", err
	}
	if len(doc.Operations) == 0 {
		return "", gqlerror.Errorf("query document defines no operations")
	}
	if operationName == "" {
		if len(doc.Operations) > 1 {
			return "", gqlerror.Errorf("operationName is required when the document defines more than one operation")
		}
		return doc.Operations[0].Operation, nil
	}
	op := doc.Operations.ForName(operationName)
	if op == nil {
		return "", gqlerror.Errorf("unknown operation %q", operationName)
	}
	return op.Operation, nil
}
