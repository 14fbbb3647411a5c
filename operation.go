package gql

import (
	"context"
	"maps"
	"time"

	"github.com/pumped-fn/pumped-gql/types"
)

// QueryArgs describes a query operation. Only Query is required.
type QueryArgs struct {
	Query     string
	Variables map[string]any
	// RequestPolicy and PollInterval are shorthand for the matching Context
	// fields and win over them when set.
	RequestPolicy types.RequestPolicy
	PollInterval  time.Duration
	Context       types.ExecutionContext
	Pause         bool
}

// executionContext folds the shorthand fields into Context.
func (a QueryArgs) executionContext() types.ExecutionContext {
	ec := a.Context.Clone()
	if a.RequestPolicy != "" {
		ec.RequestPolicy = a.RequestPolicy
	}
	if a.PollInterval != 0 {
		ec.PollInterval = a.PollInterval
	}
	return ec
}

// OperationUpdate is a partial change of an operation. Nil fields are absent.
type OperationUpdate struct {
	Query         *string
	Variables     map[string]any
	RequestPolicy *types.RequestPolicy
	PollInterval  *time.Duration
	Context       *types.ExecutionContext
	Pause         *bool
}

// IsEmpty reports whether the update carries no field at all.
func (u OperationUpdate) IsEmpty() bool {
	return u.Query == nil && u.Variables == nil && u.RequestPolicy == nil &&
		u.PollInterval == nil && u.Context == nil && u.Pause == nil
}

// contextPatch merges the nested context with the shorthand fields. Shorthand
// wins on conflict.
func (u OperationUpdate) contextPatch() ContextPatch {
	var patch ContextPatch
	if u.Context != nil {
		nested := *u.Context
		if nested.RequestPolicy != "" {
			rp := nested.RequestPolicy
			patch.RequestPolicy = &rp
		}
		if nested.PollInterval != 0 {
			pi := nested.PollInterval
			patch.PollInterval = &pi
		}
		if nested.URL != "" || len(nested.Headers) > 0 || len(nested.Meta) > 0 {
			pt := nested.Passthrough()
			patch.Passthrough = &pt
		}
	}
	if u.RequestPolicy != nil {
		rp := *u.RequestPolicy
		patch.RequestPolicy = &rp
	}
	if u.PollInterval != nil {
		pi := *u.PollInterval
		patch.PollInterval = &pi
	}
	return patch
}

// Emission is one (source, paused) pair handed to the operation's observer.
type Emission struct {
	Source types.Source
	Paused bool
}

// OnEmission is called for every new emission. The returned function, when
// not nil, is called before the next emission and when the operation stops.
type OnEmission func(source types.Source, paused bool) (cancel func())

// OperationCoordinator owns the request, context and pause state of one query
// and turns them into a stream of emissions.
type OperationCoordinator struct {
	scope    *Scope
	request  *RequestTracker
	context  *ContextTracker
	pause    *PauseGate
	source   *Executor[types.Source]
	emission *Executor[Emission]
}

// NewOperation wires the trackers, the pause gate and a source factory bound
// to client. onChange receives every emission while the operation is started.
func NewOperation(scope *Scope, client types.Client, args QueryArgs, onChange OnEmission) *OperationCoordinator {
	request := NewRequestTracker(scope, args.Query, args.Variables)
	execCtx := NewContextTracker(scope, args.executionContext())
	pause := NewPauseGate(scope, args.Pause)
	source := NewSourceFactory(client, request.Executor(), execCtx.Executor())

	emission := Derive2(
		source.Reactive(),
		pause.Executor().Reactive(),
		func(ctx *ResolveCtx, src *Controller[types.Source], p *Controller[bool]) (Emission, error) {
			s, err := src.Get()
			if err != nil {
				return Emission{}, err
			}
			paused, err := p.Get()
			if err != nil {
				return Emission{}, err
			}
			if onChange != nil {
				if cancel := onChange(s, paused); cancel != nil {
					ctx.OnCleanup(func() error {
						cancel()
						return nil
					})
				}
			}
			return Emission{Source: s, Paused: paused}, nil
		},
		WithName("operation"),
	)

	return &OperationCoordinator{
		scope:    scope,
		request:  request,
		context:  execCtx,
		pause:    pause,
		source:   source,
		emission: emission,
	}
}

// Request returns the request tracker.
func (o *OperationCoordinator) Request() *RequestTracker { return o.request }

// Context returns the context tracker.
func (o *OperationCoordinator) Context() *ContextTracker { return o.context }

// Pause returns the pause gate.
func (o *OperationCoordinator) Pause() *PauseGate { return o.pause }

// Start activates the operation; onChange receives the current emission and
// every later one until the returned stop function is called.
func (o *OperationCoordinator) Start() (stop func()) {
	return Subscribe(o.scope, o.emission, func(Emission) {})
}

// Update routes each present field of u to its owner and applies all the
// resulting writes as one batch, so a change touching several facets yields
// at most one new emission. An empty update does nothing.
func (o *OperationCoordinator) Update(ctx context.Context, u OperationUpdate) error {
	if u.IsEmpty() {
		return nil
	}

	muts := o.request.mutations(RequestPatch{
		Query:     u.Query,
		Variables: maps.Clone(u.Variables),
	})
	if u.Pause != nil {
		muts = append(muts, Set(o.pause.Executor(), *u.Pause))
	}
	muts = append(muts, o.context.mutations(u.contextPatch())...)

	return o.scope.Apply(ctx, muts...)
}
