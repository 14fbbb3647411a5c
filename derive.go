package gql

func Derive1[T any, D1 any](
	d1 Dependency,
	factory func(*ResolveCtx, *Controller[D1]) (T, error),
	opts ...ExecutorOption,
) *Executor[T] {
	exec := &Executor[T]{
		deps: []Dependency{d1},
		factory: func(ctx *ResolveCtx) (T, error) {
			ctrl1 := &Controller[D1]{
				executor: d1.GetExecutor().(*Executor[D1]),
				scope:    ctx.scope,
			}
			return factory(ctx, ctrl1)
		},
		tags: make(map[any]any),
	}

	for _, opt := range opts {
		opt(exec)
	}

	return exec
}

func Derive2[T any, D1 any, D2 any](
	d1 Dependency,
	d2 Dependency,
	factory func(*ResolveCtx, *Controller[D1], *Controller[D2]) (T, error),
	opts ...ExecutorOption,
) *Executor[T] {
	exec := &Executor[T]{
		deps: []Dependency{d1, d2},
		factory: func(ctx *ResolveCtx) (T, error) {
			ctrl1 := &Controller[D1]{
				executor: d1.GetExecutor().(*Executor[D1]),
				scope:    ctx.scope,
			}
			ctrl2 := &Controller[D2]{
				executor: d2.GetExecutor().(*Executor[D2]),
				scope:    ctx.scope,
			}
			return factory(ctx, ctrl1, ctrl2)
		},
		tags: make(map[any]any),
	}

	for _, opt := range opts {
		opt(exec)
	}

	return exec
}

func Derive3[T any, D1 any, D2 any, D3 any](
	d1 Dependency,
	d2 Dependency,
	d3 Dependency,
	factory func(*ResolveCtx, *Controller[D1], *Controller[D2], *Controller[D3]) (T, error),
	opts ...ExecutorOption,
) *Executor[T] {
	exec := &Executor[T]{
		deps: []Dependency{d1, d2, d3},
		factory: func(ctx *ResolveCtx) (T, error) {
			ctrl1 := &Controller[D1]{
				executor: d1.GetExecutor().(*Executor[D1]),
				scope:    ctx.scope,
			}
			ctrl2 := &Controller[D2]{
				executor: d2.GetExecutor().(*Executor[D2]),
				scope:    ctx.scope,
			}
			ctrl3 := &Controller[D3]{
				executor: d3.GetExecutor().(*Executor[D3]),
				scope:    ctx.scope,
			}
			return factory(ctx, ctrl1, ctrl2, ctrl3)
		},
		tags: make(map[any]any),
	}

	for _, opt := range opts {
		opt(exec)
	}

	return exec
}
