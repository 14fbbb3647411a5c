package gql

import (
	"context"
	"time"

	"github.com/pumped-fn/pumped-gql/types"
)

// ContextPatch is a partial update of a ContextTracker. Nil fields leave the
// corresponding facet unchanged.
type ContextPatch struct {
	PollInterval  *time.Duration
	RequestPolicy *types.RequestPolicy
	// Passthrough is merged shallowly over the current passthrough fields.
	Passthrough *types.ExecutionContext
}

// IsEmpty reports whether the patch sets nothing.
func (p ContextPatch) IsEmpty() bool {
	return p.PollInterval == nil && p.RequestPolicy == nil && p.Passthrough == nil
}

// ContextTracker tracks the execution options of an operation. Poll interval,
// request policy and passthrough fields live in separate cells so that a change
// to one never re-triggers on another's unchanged value. Every recombination
// yields a new ExecutionContext, compared by value.
type ContextTracker struct {
	scope         *Scope
	pollInterval  *Executor[time.Duration]
	requestPolicy *Executor[types.RequestPolicy]
	passthrough   *Executor[types.ExecutionContext]
	context       *Executor[types.ExecutionContext]
}

// NewContextTracker creates a tracker seeded with initial.
func NewContextTracker(scope *Scope, initial types.ExecutionContext) *ContextTracker {
	pollCell := Value(initial.PollInterval,
		WithName("context.pollInterval"),
		Comparable[time.Duration](),
	)
	policyCell := Value(initial.RequestPolicy,
		WithName("context.requestPolicy"),
		Comparable[types.RequestPolicy](),
	)
	passthroughCell := Value(initial.Passthrough(),
		WithName("context.passthrough"),
		WithEquality(types.ExecutionContext.Equal),
	)
	combined := Derive3(
		pollCell.Reactive(),
		policyCell.Reactive(),
		passthroughCell.Reactive(),
		func(
			ctx *ResolveCtx,
			poll *Controller[time.Duration],
			policy *Controller[types.RequestPolicy],
			passthrough *Controller[types.ExecutionContext],
		) (types.ExecutionContext, error) {
			base, err := passthrough.Get()
			if err != nil {
				return types.ExecutionContext{}, err
			}
			interval, err := poll.Get()
			if err != nil {
				return types.ExecutionContext{}, err
			}
			rp, err := policy.Get()
			if err != nil {
				return types.ExecutionContext{}, err
			}

			out := base.Clone()
			out.PollInterval = interval
			out.RequestPolicy = rp
			return out, nil
		},
		WithName("context"),
		WithEquality(types.ExecutionContext.Equal),
	)

	return &ContextTracker{
		scope:         scope,
		pollInterval:  pollCell,
		requestPolicy: policyCell,
		passthrough:   passthroughCell,
		context:       combined,
	}
}

// Executor returns the recombined context executor.
func (t *ContextTracker) Executor() *Executor[types.ExecutionContext] {
	return t.context
}

// Current resolves the current context.
func (t *ContextTracker) Current() (types.ExecutionContext, error) {
	return Resolve(t.scope, t.context)
}

// Set applies patch as one batch.
func (t *ContextTracker) Set(ctx context.Context, patch ContextPatch) error {
	return t.scope.Apply(ctx, t.mutations(patch)...)
}

func (t *ContextTracker) mutations(patch ContextPatch) []Mutation {
	var muts []Mutation
	if patch.PollInterval != nil {
		muts = append(muts, Set(t.pollInterval, *patch.PollInterval))
	}
	if patch.RequestPolicy != nil {
		muts = append(muts, Set(t.requestPolicy, *patch.RequestPolicy))
	}
	if patch.Passthrough != nil {
		passthrough := patch.Passthrough.Clone()
		muts = append(muts, Modify(t.passthrough, func(current types.ExecutionContext) types.ExecutionContext {
			return current.MergePassthrough(passthrough)
		}))
	}
	return muts
}

// Subscribe delivers the current context immediately and every changed
// context afterwards.
func (t *ContextTracker) Subscribe(fn func(types.ExecutionContext)) func() {
	return Subscribe(t.scope, t.context, fn)
}
