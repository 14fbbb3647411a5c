package gql

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Scope manages the lifecycle, resolution and change propagation of executors.
//
// Updates, subscribes and unsubscribes are serialised through a trampoline
// queue: an operation issued while another one is running (for example from a
// subscriber callback) is queued and runs after the current one finishes.
type Scope struct {
	mu         sync.Mutex
	cache      map[AnyExecutor]any
	tags       sync.Map
	graph      *ReactiveGraph
	extensions []Extension
	presets    map[AnyExecutor]preset
	cleanups   map[AnyExecutor][]cleanupEntry
	refs       map[AnyExecutor]int
	subs       map[AnyExecutor][]*subscriber
	logger     *slog.Logger
	disposed   atomic.Bool
	queue      serialQueue
}

type preset struct {
	value    any
	executor AnyExecutor
	isValue  bool
}

type subscriber struct {
	fn        func(any)
	active    bool
	cancelled atomic.Bool
}

// ScopeOption is a modifier for scopes
type ScopeOption func(*Scope)

// WithScopeTag returns an option that sets a tag on a scope
func WithScopeTag[T any](tag Tag[T], val T) ScopeOption {
	return func(s *Scope) {
		tag.SetOnScope(s, val)
	}
}

// WithExtension returns an option that registers an extension to a scope
func WithExtension(ext Extension) ScopeOption {
	return func(s *Scope) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// WithPreset returns an option that sets a preset for an executor
func WithPreset[T any](original *Executor[T], replacement any) ScopeOption {
	return func(s *Scope) {
		switch r := replacement.(type) {
		case T:
			s.presets[original] = preset{
				value:   r,
				isValue: true,
			}
		case *Executor[T]:
			s.presets[original] = preset{
				executor: r,
				isValue:  false,
			}
		default:
			panic(fmt.Sprintf("preset must be value of type %T or *Executor[%T]", *new(T), *new(T)))
		}
	}
}

// WithScopeLogger sets the logger used for propagation and cleanup failures.
func WithScopeLogger(logger *slog.Logger) ScopeOption {
	return func(s *Scope) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScope creates a new scope with optional configuration
func NewScope(opts ...ScopeOption) *Scope {
	s := &Scope{
		cache:      make(map[AnyExecutor]any),
		graph:      NewReactiveGraph(),
		extensions: []Extension{},
		presets:    make(map[AnyExecutor]preset),
		cleanups:   make(map[AnyExecutor][]cleanupEntry),
		refs:       make(map[AnyExecutor]int),
		subs:       make(map[AnyExecutor][]*subscriber),
		logger:     defaultLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Logger returns the scope's logger
func (s *Scope) Logger() *slog.Logger {
	return s.logger
}

// Accessor creates a controller for an executor
func Accessor[T any](s *Scope, exec *Executor[T]) *Controller[T] {
	return &Controller[T]{
		executor: exec,
		scope:    s,
	}
}

// Resolve resolves an executor's value (lazily, with caching)
func Resolve[T any](s *Scope, exec *Executor[T]) (T, error) {
	val, err := s.resolve(exec)
	if err != nil {
		var zero T
		return zero, err
	}
	return val.(T), nil
}

func (s *Scope) peek(exec AnyExecutor) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.cache[exec]
	return val, ok
}

func (s *Scope) resolve(exec AnyExecutor) (any, error) {
	if s.disposed.Load() {
		return nil, ErrScopeDisposed
	}
	if val, ok := s.peek(exec); ok {
		return val, nil
	}

	for _, dep := range exec.GetDeps() {
		if dep.GetMode() == ModeReactive {
			s.graph.AddDependency(exec, dep.GetExecutor())
		}
	}

	s.mu.Lock()
	p, hasPreset := s.presets[exec]
	s.mu.Unlock()

	if hasPreset {
		if p.isValue {
			s.store(exec, p.value)
			return p.value, nil
		}
		val, err := s.resolve(p.executor)
		if err != nil {
			return nil, err
		}
		s.store(exec, val)
		return val, nil
	}

	for _, dep := range exec.GetDeps() {
		if dep.GetMode() == ModeLazy {
			continue
		}
		if _, err := s.resolve(dep.GetExecutor()); err != nil {
			return nil, err
		}
	}

	val, err := s.runFactory(exec)
	if err != nil {
		return nil, err
	}
	s.store(exec, val)
	return val, nil
}

func (s *Scope) store(exec AnyExecutor, val any) {
	s.mu.Lock()
	s.cache[exec] = val
	s.mu.Unlock()
}

// runFactory invokes the executor factory through the extension chain and
// registers the cleanups it declared.
func (s *Scope) runFactory(exec AnyExecutor) (any, error) {
	op := &Operation{
		Kind:     OpResolve,
		Executor: exec,
		Scope:    s,
	}

	rctx := &ResolveCtx{scope: s, executorID: exec}
	next := func() (any, error) {
		val, err := exec.resolveAny(rctx)
		if err != nil {
			return nil, CreateResolveError(exec, err, "factory")
		}
		return val, nil
	}

	val, err := s.wrap(context.Background(), next, op)
	s.registerCleanups(exec, rctx.takeCleanups())
	if err != nil {
		s.notifyError(err, op)
		return nil, err
	}
	return val, nil
}

func (s *Scope) wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	exts := s.snapshotExtensions()
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(ctx, currentNext, op)
		}
	}
	return next()
}

func (s *Scope) notifyError(err error, op *Operation) {
	for _, ext := range s.snapshotExtensions() {
		ext.OnError(err, op, s)
	}
}

func (s *Scope) snapshotExtensions() []Extension {
	s.mu.Lock()
	defer s.mu.Unlock()
	exts := make([]Extension, len(s.extensions))
	copy(exts, s.extensions)
	return exts
}

// Mutation is a pending write of one state cell, applied with Scope.Apply.
type Mutation struct {
	executor AnyExecutor
	value    any
	modify   func(old any) any
}

// Set builds a mutation writing v into exec.
func Set[T any](exec *Executor[T], v T) Mutation {
	return Mutation{executor: exec, value: v}
}

// Modify builds a mutation writing fn(current) into exec. fn runs when the
// batch is applied, so queued batches each see the result of the previous one.
func Modify[T any](exec *Executor[T], fn func(current T) T) Mutation {
	return Mutation{
		executor: exec,
		modify: func(old any) any {
			return fn(old.(T))
		},
	}
}

// Update changes an executor's cached value and propagates to reactive dependents
func Update[T any](ctx context.Context, s *Scope, exec *Executor[T], newVal T) error {
	return s.Apply(ctx, Set(exec, newVal))
}

// Apply writes every mutation and then propagates the changes once. Each
// reactive dependent is recomputed at most once per call, after all of its
// changed dependencies. Mutations whose value equals the current one (under
// the executor's equality) are skipped.
//
// When Apply is called while another scope operation is running, it is
// queued and nil is returned; errors of queued batches go to the extensions
// and the scope logger.
func (s *Scope) Apply(ctx context.Context, mutations ...Mutation) error {
	if s.disposed.Load() {
		return ErrScopeDisposed
	}
	if len(mutations) == 0 {
		return nil
	}

	errCh := make(chan error, 1)
	s.run(func() {
		errCh <- s.apply(ctx, mutations)
	})

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (s *Scope) apply(ctx context.Context, mutations []Mutation) error {
	if s.disposed.Load() {
		return ErrScopeDisposed
	}

	changed := make(map[AnyExecutor]bool)
	var roots []AnyExecutor
	var firstErr error

	for _, m := range mutations {
		exec, val := m.executor, m.value
		if m.modify != nil {
			current, err := s.resolve(exec)
			if err != nil {
				s.logger.Error("mutation resolve failed",
					"executor", ExecutorName(exec),
					"error", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			val = m.modify(current)
		}
		old, had := s.peek(exec)
		if had && exec.equalAny(old, val) {
			continue
		}
		op := &Operation{
			Kind:     OpUpdate,
			Executor: exec,
			Scope:    s,
		}
		_, err := s.wrap(ctx, func() (any, error) {
			s.store(exec, val)
			return nil, nil
		}, op)
		if err != nil {
			s.notifyError(err, op)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !changed[exec] {
			changed[exec] = true
			roots = append(roots, exec)
		}
	}

	if len(roots) == 0 {
		return firstErr
	}

	order := s.graph.TopologicalDependents(roots...)
	for _, dep := range order {
		if !reactiveUpstreamChanged(dep, changed) {
			continue
		}

		s.runExecutorCleanups(dep, "reactive")

		s.mu.Lock()
		old, had := s.cache[dep]
		delete(s.cache, dep)
		active := s.refs[dep] > 0
		s.mu.Unlock()

		if !active {
			changed[dep] = true
			continue
		}

		val, err := s.resolve(dep)
		if err != nil {
			s.logger.Error("reactive re-resolve failed",
				"executor", ExecutorName(dep),
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if had && dep.equalAny(old, val) {
			s.store(dep, old)
			continue
		}
		changed[dep] = true
	}

	s.logger.Debug("propagated",
		"roots", len(roots),
		"dependents", len(order),
		"changed", len(changed))

	for _, exec := range roots {
		s.notify(exec)
	}
	for _, exec := range order {
		if changed[exec] {
			s.notify(exec)
		}
	}

	return firstErr
}

func reactiveUpstreamChanged(exec AnyExecutor, changed map[AnyExecutor]bool) bool {
	for _, dep := range exec.GetDeps() {
		if dep.GetMode() == ModeReactive && changed[dep.GetExecutor()] {
			return true
		}
	}
	return false
}

// notify delivers the current value of exec to its subscribers.
func (s *Scope) notify(exec AnyExecutor) {
	s.mu.Lock()
	val, ok := s.cache[exec]
	subs := append([]*subscriber(nil), s.subs[exec]...)
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, sub := range subs {
		if !sub.cancelled.Load() {
			sub.fn(val)
		}
	}
}

// Subscribe activates exec and calls fn with its current value and with every
// later change. The first subscriber of an executor activates it together with
// its dependencies; when the last one unsubscribes the executor's cleanups run
// and derived values are dropped. After the returned function is called fn is
// never invoked again.
func Subscribe[T any](s *Scope, exec *Executor[T], fn func(T)) func() {
	if s.disposed.Load() {
		return func() {}
	}

	sub := &subscriber{
		fn: func(v any) { fn(v.(T)) },
	}

	s.run(func() {
		if sub.cancelled.Load() || s.disposed.Load() {
			return
		}
		s.activate(exec)
		sub.active = true

		s.mu.Lock()
		s.subs[exec] = append(s.subs[exec], sub)
		s.mu.Unlock()

		val, err := s.resolve(exec)
		if err != nil {
			s.logger.Error("subscribe resolve failed",
				"executor", ExecutorName(exec),
				"error", err)
			return
		}
		if !sub.cancelled.Load() {
			sub.fn(val)
		}
	})

	return func() {
		if sub.cancelled.Swap(true) {
			return
		}
		s.run(func() {
			if !sub.active {
				return
			}
			sub.active = false

			s.mu.Lock()
			s.subs[exec] = removeElement(s.subs[exec], sub)
			if len(s.subs[exec]) == 0 {
				delete(s.subs, exec)
			}
			s.mu.Unlock()

			s.deactivate(exec)
		})
	}
}

func (s *Scope) activate(exec AnyExecutor) {
	s.mu.Lock()
	s.refs[exec]++
	first := s.refs[exec] == 1
	s.mu.Unlock()

	if !first {
		return
	}
	for _, dep := range exec.GetDeps() {
		if dep.GetMode() != ModeLazy {
			s.activate(dep.GetExecutor())
		}
	}
}

func (s *Scope) deactivate(exec AnyExecutor) {
	s.mu.Lock()
	s.refs[exec]--
	last := s.refs[exec] <= 0
	if last {
		delete(s.refs, exec)
	}
	s.mu.Unlock()

	if !last {
		return
	}

	hadCleanups := s.runExecutorCleanups(exec, "deactivate")
	if hadCleanups || len(exec.GetDeps()) > 0 {
		s.mu.Lock()
		delete(s.cache, exec)
		s.mu.Unlock()
		// Uncached and unobserved: the next resolve re-adds the edges.
		if len(s.graph.GetDirectDependents(exec)) == 0 {
			s.graph.Detach(exec)
		}
	}

	for _, dep := range exec.GetDeps() {
		if dep.GetMode() != ModeLazy {
			s.deactivate(dep.GetExecutor())
		}
	}
}

func (s *Scope) run(op func()) {
	s.queue.run(op)
}

// IsActive reports whether exec currently has subscribers, directly or
// through a dependent.
func (s *Scope) IsActive(exec AnyExecutor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs[exec] > 0
}

func (s *Scope) release(exec AnyExecutor) {
	s.runExecutorCleanups(exec, "release")
	s.mu.Lock()
	delete(s.cache, exec)
	s.mu.Unlock()
}

// UseExtension registers an extension to the scope
func (s *Scope) UseExtension(ext Extension) error {
	s.mu.Lock()
	s.extensions = append(s.extensions, ext)
	sort.SliceStable(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})
	s.mu.Unlock()

	return ext.Init(s)
}

func (s *Scope) registerCleanups(exec AnyExecutor, entries []cleanupEntry) {
	if len(entries) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups[exec] = append(s.cleanups[exec], entries...)
}

// runExecutorCleanups runs and forgets the cleanups of exec. It reports
// whether there were any.
func (s *Scope) runExecutorCleanups(exec AnyExecutor, cleanupContext string) bool {
	s.mu.Lock()
	entries := s.cleanups[exec]
	delete(s.cleanups, exec)
	s.mu.Unlock()

	if len(entries) == 0 {
		return false
	}
	s.runCleanups(entries, exec, cleanupContext)
	return true
}

func (s *Scope) runCleanups(entries []cleanupEntry, exec AnyExecutor, cleanupContext string) {
	exts := s.snapshotExtensions()

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]

		if err := entry.fn(); err != nil {
			cleanupErr := &CleanupError{
				ExecutorID: exec,
				Err:        err,
				Context:    cleanupContext,
			}

			handled := false
			for _, ext := range exts {
				if ext.OnCleanupError(cleanupErr) {
					handled = true
					break
				}
			}
			if !handled {
				s.logger.Warn("cleanup failed",
					"executor", ExecutorName(exec),
					"context", cleanupContext,
					"error", err)
			}
		}
	}
}

// Dispose runs every registered cleanup, drops all cached values and disposes
// the extensions. Later operations on the scope return ErrScopeDisposed.
func (s *Scope) Dispose() error {
	if s.disposed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	all := make([]struct {
		exec    AnyExecutor
		entries []cleanupEntry
	}, 0, len(s.cleanups))
	for exec, entries := range s.cleanups {
		all = append(all, struct {
			exec    AnyExecutor
			entries []cleanupEntry
		}{exec, entries})
	}
	s.cleanups = make(map[AnyExecutor][]cleanupEntry)
	s.cache = make(map[AnyExecutor]any)
	for _, subs := range s.subs {
		for _, sub := range subs {
			sub.cancelled.Store(true)
		}
	}
	s.subs = make(map[AnyExecutor][]*subscriber)
	s.refs = make(map[AnyExecutor]int)
	s.mu.Unlock()

	for i := len(all) - 1; i >= 0; i-- {
		s.runCleanups(all[i].entries, all[i].exec, "dispose")
	}

	for _, ext := range s.snapshotExtensions() {
		if err := ext.Dispose(s); err != nil {
			return fmt.Errorf("disposing extension %s: %w", ext.Name(), err)
		}
	}

	return nil
}

// GetTag retrieves a tag value from the scope
func (s *Scope) GetTag(tag any) (any, bool) {
	return s.tags.Load(tag)
}

// SetTag stores a tag value on the scope
func (s *Scope) SetTag(tag any, val any) {
	s.tags.Store(tag, val)
}

// ExportDependencyGraph returns the reactive edges discovered so far, keyed
// by dependency.
func (s *Scope) ExportDependencyGraph() map[AnyExecutor][]AnyExecutor {
	return s.graph.Export()
}
