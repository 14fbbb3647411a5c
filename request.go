package gql

import (
	"context"
	"maps"

	"github.com/pumped-fn/pumped-gql/types"
)

// RequestPatch is a partial update of a RequestTracker. A nil field leaves the
// corresponding facet unchanged.
type RequestPatch struct {
	Query     *string
	Variables map[string]any
}

// RequestTracker holds the query document and variables of an operation and
// exposes the request identity derived from them. The identity only changes
// when its key does.
type RequestTracker struct {
	scope     *Scope
	query     *Executor[string]
	variables *Executor[map[string]any]
	request   *Executor[types.Request]
}

// NewRequestTracker creates a tracker seeded with query and variables.
func NewRequestTracker(scope *Scope, query string, variables map[string]any) *RequestTracker {
	queryCell := Value(query,
		WithName("request.query"),
		Comparable[string](),
	)
	variablesCell := Value(maps.Clone(variables),
		WithName("request.variables"),
	)
	request := Derive2(
		queryCell.Reactive(),
		variablesCell.Reactive(),
		func(ctx *ResolveCtx, q *Controller[string], v *Controller[map[string]any]) (types.Request, error) {
			doc, err := q.Get()
			if err != nil {
				return types.Request{}, err
			}
			vars, err := v.Get()
			if err != nil {
				return types.Request{}, err
			}
			return types.NewRequest(doc, vars), nil
		},
		WithName("request"),
		WithEquality(types.SameKey),
	)

	return &RequestTracker{
		scope:     scope,
		query:     queryCell,
		variables: variablesCell,
		request:   request,
	}
}

// Executor returns the derived request identity executor.
func (t *RequestTracker) Executor() *Executor[types.Request] {
	return t.request
}

// Current resolves the current request identity.
func (t *RequestTracker) Current() (types.Request, error) {
	return Resolve(t.scope, t.request)
}

// Set applies patch as one batch.
func (t *RequestTracker) Set(ctx context.Context, patch RequestPatch) error {
	return t.scope.Apply(ctx, t.mutations(patch)...)
}

func (t *RequestTracker) mutations(patch RequestPatch) []Mutation {
	var muts []Mutation
	if patch.Query != nil {
		muts = append(muts, Set(t.query, *patch.Query))
	}
	if patch.Variables != nil {
		muts = append(muts, Set(t.variables, maps.Clone(patch.Variables)))
	}
	return muts
}

// Subscribe delivers the current identity immediately and every identity with
// a new key afterwards.
func (t *RequestTracker) Subscribe(fn func(types.Request)) func() {
	return Subscribe(t.scope, t.request, fn)
}
