package gql

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pumped-fn/pumped-gql/types"
)

// QueryOption configures Query.
type QueryOption func(*queryConfig)

type queryConfig struct {
	client    types.Client
	scope     *Scope
	scopeOpts []ScopeOption
	logger    *slog.Logger
}

// WithClient binds the query to client instead of the registry's current one.
func WithClient(client types.Client) QueryOption {
	return func(c *queryConfig) {
		c.client = client
	}
}

// WithScope runs the query's executors in scope instead of a private one.
func WithScope(scope *Scope) QueryOption {
	return func(c *queryConfig) {
		c.scope = scope
	}
}

// WithScopeOptions configures the private scope created for the query.
func WithScopeOptions(opts ...ScopeOption) QueryOption {
	return func(c *queryConfig) {
		c.scopeOpts = append(c.scopeOpts, opts...)
	}
}

// WithLogger sets the logger of the query and of its private scope.
func WithLogger(logger *slog.Logger) QueryOption {
	return func(c *queryConfig) {
		c.logger = logger
	}
}

// Change is one field of a partial update passed to QueryStore.OnChange.
type Change func(*OperationUpdate)

// WithQuery replaces the query document.
func WithQuery(query string) Change {
	return func(u *OperationUpdate) {
		u.Query = &query
	}
}

// WithVariables replaces the variables. A nil map sets empty variables.
func WithVariables(variables map[string]any) Change {
	return func(u *OperationUpdate) {
		if variables == nil {
			variables = map[string]any{}
		}
		u.Variables = maps.Clone(variables)
	}
}

// WithRequestPolicy sets the request policy.
func WithRequestPolicy(policy types.RequestPolicy) Change {
	return func(u *OperationUpdate) {
		u.RequestPolicy = &policy
	}
}

// WithPollInterval sets the poll interval. Zero disables polling.
func WithPollInterval(interval time.Duration) Change {
	return func(u *OperationUpdate) {
		u.PollInterval = &interval
	}
}

// WithContext merges ec into the execution context. Its RequestPolicy and
// PollInterval are overridden by WithRequestPolicy and WithPollInterval.
func WithContext(ec types.ExecutionContext) Change {
	return func(u *OperationUpdate) {
		c := ec.Clone()
		u.Context = &c
	}
}

// WithPause pauses or resumes the query.
func WithPause(paused bool) Change {
	return func(u *OperationUpdate) {
		u.Pause = &paused
	}
}

type storeSubscriber[T any] struct {
	fn        func(ResultSnapshot[T])
	primed    bool
	cancelled atomic.Bool
}

// QueryStore publishes the result snapshots of one query operation.
//
// The operation only runs while the store has subscribers: the first
// Subscribe starts it and the last unsubscribe stops it. Snapshots are
// delivered one at a time in order; a subscriber may call Subscribe, OnChange
// or its unsubscribe function from within its callback.
type QueryStore[T any] struct {
	op     *OperationCoordinator
	logger *slog.Logger
	queue  serialQueue

	mu         sync.Mutex
	snapshot   ResultSnapshot[T]
	subs       []*storeSubscriber[T]
	generation uint64
	stop       func()
}

// Query creates the result store of a query operation. Nothing is executed
// until the store gets its first subscriber.
func Query[T any](args QueryArgs, opts ...QueryOption) *QueryStore[T] {
	cfg := &queryConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.client == nil {
		cfg.client = GetClient()
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	if cfg.scope == nil {
		scopeOpts := append([]ScopeOption{WithScopeLogger(cfg.logger)}, cfg.scopeOpts...)
		cfg.scope = NewScope(scopeOpts...)
	}

	q := &QueryStore[T]{logger: cfg.logger}
	q.op = NewOperation(cfg.scope, cfg.client, args, q.handle)
	return q
}

// Operation returns the coordinator driving the store.
func (q *QueryStore[T]) Operation() *OperationCoordinator {
	return q.op
}

// Snapshot returns the current snapshot.
func (q *QueryStore[T]) Snapshot() ResultSnapshot[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot
}

// Subscribe calls fn with the current snapshot and then with every change
// until the returned function is called. Late subscribers get no replay of
// earlier snapshots.
func (q *QueryStore[T]) Subscribe(fn func(ResultSnapshot[T])) (unsubscribe func()) {
	sub := &storeSubscriber[T]{fn: fn}

	q.queue.run(func() {
		if sub.cancelled.Load() {
			return
		}
		q.mu.Lock()
		q.subs = append(q.subs, sub)
		first := len(q.subs) == 1 && q.stop == nil
		q.mu.Unlock()

		if first {
			q.logger.Debug("starting query operation")
			stop := q.op.Start()
			q.mu.Lock()
			q.stop = stop
			q.mu.Unlock()
		}

		// Runs after the emission queued by Start, so the first snapshot a
		// subscriber sees already reflects the started fetch.
		q.queue.run(func() {
			if sub.cancelled.Load() {
				return
			}
			sub.primed = true
			sub.fn(q.Snapshot())
		})
	})

	return func() {
		if sub.cancelled.Swap(true) {
			return
		}
		q.queue.run(func() {
			q.mu.Lock()
			q.subs = removeElement(q.subs, sub)
			var stop func()
			if len(q.subs) == 0 {
				stop, q.stop = q.stop, nil
			}
			q.mu.Unlock()

			if stop != nil {
				q.logger.Debug("stopping query operation")
				stop()
			}
		})
	}
}

// OnChange applies a partial update to the operation. Changes touching
// several facets produce at most one new source.
func (q *QueryStore[T]) OnChange(ctx context.Context, changes ...Change) error {
	var u OperationUpdate
	for _, change := range changes {
		change(&u)
	}
	return q.op.Update(ctx, u)
}

// handle runs the fetch lifecycle of one emission. It is the coordinator's
// OnEmission; the returned function supersedes the emission.
func (q *QueryStore[T]) handle(source types.Source, paused bool) func() {
	q.mu.Lock()
	q.generation++
	gen := q.generation
	q.mu.Unlock()

	h := &sourceHandle{}

	q.queue.run(func() {
		if !q.isCurrent(gen) {
			return
		}
		if paused {
			q.merge(gen, lifecyclePatch[T](false, false))
			return
		}

		q.merge(gen, lifecyclePatch[T](true, false))
		cancel := source.Subscribe(
			func(r types.OperationResult) {
				q.queue.run(func() {
					q.merge(gen, patchFromResult[T](r))
				})
			},
			func() {
				q.queue.run(func() {
					q.merge(gen, lifecyclePatch[T](false, false))
				})
			},
		)
		h.set(cancel)
	})

	return func() {
		q.mu.Lock()
		if q.generation == gen {
			q.generation++
		}
		q.mu.Unlock()
		h.cancel()
	}
}

func (q *QueryStore[T]) isCurrent(gen uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generation == gen
}

// merge applies p when gen is still the current emission and publishes the
// new snapshot. Must run on the store queue.
func (q *QueryStore[T]) merge(gen uint64, p resultPatch[T]) {
	if p.isEmpty() {
		return
	}

	q.mu.Lock()
	if q.generation != gen {
		q.mu.Unlock()
		return
	}
	q.snapshot = q.snapshot.merge(p)
	snap := q.snapshot
	subs := append([]*storeSubscriber[T](nil), q.subs...)
	q.mu.Unlock()

	for _, sub := range subs {
		if sub.primed && !sub.cancelled.Load() {
			sub.fn(snap)
		}
	}
}

// sourceHandle holds the cancel function of a source subscription that may be
// superseded before the subscription is made.
type sourceHandle struct {
	mu        sync.Mutex
	cancelFn  func()
	cancelled bool
}

func (h *sourceHandle) set(cancel func()) {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	h.cancelFn = cancel
	h.mu.Unlock()
}

func (h *sourceHandle) cancel() {
	h.mu.Lock()
	h.cancelled = true
	cancel := h.cancelFn
	h.cancelFn = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
