package gql

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pumped-fn/pumped-gql/types"
)

// ResultSnapshot is the merged state of a query as seen by subscribers.
type ResultSnapshot[T any] struct {
	Fetching bool
	Stale    bool
	Error    error
	Data     T
	// HasData is false until a result with a non-null data payload arrived.
	HasData    bool
	Extensions map[string]any
	Operation  *types.Operation
}

// resultPatch is a partial snapshot. Only the fields flagged present are
// merged; the zero patch changes nothing.
type resultPatch[T any] struct {
	fetching *bool
	stale    *bool

	result     bool
	err        error
	data       T
	hasData    bool
	extensions map[string]any
	operation  *types.Operation
}

func lifecyclePatch[T any](fetching, stale bool) resultPatch[T] {
	return resultPatch[T]{fetching: &fetching, stale: &stale}
}

// patchFromResult converts a transport result. A result replaces every result
// field of the snapshot; data that cannot be decoded into T becomes an error.
func patchFromResult[T any](r types.OperationResult) resultPatch[T] {
	fetching := false
	stale := r.Stale
	p := resultPatch[T]{
		fetching:   &fetching,
		stale:      &stale,
		result:     true,
		extensions: r.Extensions,
		operation:  r.Operation,
	}
	if r.Error != nil {
		p.err = r.Error
	}
	if r.HasData() {
		if err := json.Unmarshal(r.Data, &p.data); err != nil {
			p.err = errors.Join(p.err, fmt.Errorf("decode data: %w", err))
			var zero T
			p.data = zero
		} else {
			p.hasData = true
		}
	}
	return p
}

func (p resultPatch[T]) isEmpty() bool {
	return p.fetching == nil && p.stale == nil && !p.result
}

// merge returns s with the present fields of p applied.
func (s ResultSnapshot[T]) merge(p resultPatch[T]) ResultSnapshot[T] {
	out := s
	if p.fetching != nil {
		out.Fetching = *p.fetching
	}
	if p.stale != nil {
		out.Stale = *p.stale
	}
	if p.result {
		out.Error = p.err
		out.Data = p.data
		out.HasData = p.hasData
		out.Extensions = p.extensions
		out.Operation = p.operation
	}
	return out
}
