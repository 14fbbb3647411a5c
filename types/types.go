// Package types defines the values exchanged between the query pipeline and a
// GraphQL transport: request identities, execution contexts, operation results
// and the lazy sources that produce them.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OperationKind names the GraphQL operation type.
type OperationKind string

const (
	// KindQuery is the only kind driven by the query pipeline.
	KindQuery OperationKind = "query"
)

// Operation describes one execution of a request under a context.
// A transport creates one per ExecuteQuery call.
type Operation struct {
	ID      string
	Kind    OperationKind
	Request Request
	Context ExecutionContext
}

// GraphQLError is a single entry of a response's "errors" array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// CombinedError carries either a network failure, GraphQL execution errors,
// or both, for a single result.
type CombinedError struct {
	NetworkError  error
	GraphQLErrors []GraphQLError
	// Response is the HTTP status code, 0 when no response was received.
	Response int
}

func (e *CombinedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string
	if e.NetworkError != nil {
		parts = append(parts, "[Network] "+e.NetworkError.Error())
	}
	for _, gqlErr := range e.GraphQLErrors {
		parts = append(parts, "[GraphQL] "+gqlErr.Message)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("graphql: unknown error (status %d)", e.Response)
	}
	return strings.Join(parts, "\n")
}

func (e *CombinedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.NetworkError
}

// OperationResult is one value produced by a Source.
type OperationResult struct {
	Operation  *Operation
	Data       json.RawMessage
	Error      *CombinedError
	Extensions map[string]any
	// Stale marks a cached result that is being refreshed.
	Stale bool
}

// HasData reports whether the result carried a non-null data payload.
func (r OperationResult) HasData() bool {
	return len(r.Data) > 0 && string(r.Data) != "null"
}
