package gql

// Executor represents a unit of computation with dependencies
type Executor[T any] struct {
	factory func(*ResolveCtx) (T, error)
	deps    []Dependency
	tags    map[any]any
	equal   func(a, b T) bool
}

// AnyExecutor is a type-erased interface for dependency tracking
type AnyExecutor interface {
	GetDeps() []Dependency
	GetTag(tag any) (any, bool)
	SetTag(tag any, val any)

	resolveAny(ctx *ResolveCtx) (any, error)
	equalAny(a, b any) bool
}

func (e *Executor[T]) GetDeps() []Dependency {
	return e.deps
}

func (e *Executor[T]) GetTag(tag any) (any, bool) {
	val, ok := e.tags[tag]
	return val, ok
}

func (e *Executor[T]) SetTag(tag any, val any) {
	e.tags[tag] = val
}

func (e *Executor[T]) resolveAny(ctx *ResolveCtx) (any, error) {
	return e.factory(ctx)
}

// equalAny reports whether a and b are equal under the executor's equality.
// Without an equality every new value counts as a change.
func (e *Executor[T]) equalAny(a, b any) bool {
	if e.equal == nil {
		return false
	}
	ta, okA := a.(T)
	tb, okB := b.(T)
	if !okA || !okB {
		return false
	}
	return e.equal(ta, tb)
}

// DependencyMode defines how a dependency behaves
type DependencyMode string

const (
	// ModeStatic resolves once and caches forever
	ModeStatic DependencyMode = "static"
	// ModeReactive re-resolves the dependent when the dependency changes
	ModeReactive DependencyMode = "reactive"
	// ModeLazy defers resolution until explicitly requested
	ModeLazy DependencyMode = "lazy"
)

// Dependency represents an executor with its resolution mode
type Dependency interface {
	GetExecutor() AnyExecutor
	GetMode() DependencyMode
}

type dependencyWrapper struct {
	executor AnyExecutor
	mode     DependencyMode
}

func (d *dependencyWrapper) GetExecutor() AnyExecutor {
	return d.executor
}

func (d *dependencyWrapper) GetMode() DependencyMode {
	return d.mode
}

// Executor implements Dependency interface (default: static mode)
func (e *Executor[T]) GetExecutor() AnyExecutor {
	return e
}

func (e *Executor[T]) GetMode() DependencyMode {
	return ModeStatic
}

// Reactive returns a reactive dependency variant
func (e *Executor[T]) Reactive() Dependency {
	return &dependencyWrapper{executor: e, mode: ModeReactive}
}

// Lazy returns a lazy dependency variant
func (e *Executor[T]) Lazy() Dependency {
	return &dependencyWrapper{executor: e, mode: ModeLazy}
}

// ExecutorOption is a modifier for executors
type ExecutorOption func(AnyExecutor)

// WithTag returns an option that sets a tag on an executor
func WithTag[T any](tag Tag[T], val T) ExecutorOption {
	return func(exec AnyExecutor) {
		tag.Set(exec, val)
	}
}

// WithName tags the executor with a name used by logs and metrics.
func WithName(name string) ExecutorOption {
	return WithTag(NameTag, name)
}

// WithEquality makes updates and reactive re-resolutions that produce a value
// equal to the current one invisible downstream.
func WithEquality[T any](equal func(a, b T) bool) ExecutorOption {
	return func(exec AnyExecutor) {
		if e, ok := exec.(*Executor[T]); ok {
			e.equal = equal
		}
	}
}

// Comparable is WithEquality using ==.
func Comparable[T comparable]() ExecutorOption {
	return WithEquality(func(a, b T) bool { return a == b })
}

// Provide creates an executor with no dependencies
func Provide[T any](factory func(*ResolveCtx) (T, error), opts ...ExecutorOption) *Executor[T] {
	exec := &Executor[T]{
		factory: factory,
		deps:    nil,
		tags:    make(map[any]any),
	}

	for _, opt := range opts {
		opt(exec)
	}

	return exec
}

// Value creates a state executor holding initial.
func Value[T any](initial T, opts ...ExecutorOption) *Executor[T] {
	return Provide(func(*ResolveCtx) (T, error) {
		return initial, nil
	}, opts...)
}
