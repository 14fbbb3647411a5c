package gql

import "context"

// PauseGate is the boolean cell deciding whether new sources drive results.
type PauseGate struct {
	scope  *Scope
	paused *Executor[bool]
}

// NewPauseGate creates a gate in the given state.
func NewPauseGate(scope *Scope, paused bool) *PauseGate {
	return &PauseGate{
		scope:  scope,
		paused: Value(paused, WithName("pause"), Comparable[bool]()),
	}
}

// Executor returns the underlying cell.
func (g *PauseGate) Executor() *Executor[bool] {
	return g.paused
}

// Set changes the gate state. Setting the current state is a no-op.
func (g *PauseGate) Set(ctx context.Context, paused bool) error {
	return Update(ctx, g.scope, g.paused, paused)
}

// Subscribe delivers the current state and every change.
func (g *PauseGate) Subscribe(fn func(bool)) func() {
	return Subscribe(g.scope, g.paused, fn)
}
