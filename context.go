package gql

import "sync"

type cleanupEntry struct {
	fn    func() error
	order int
}

// ResolveCtx provides context for factory functions
type ResolveCtx struct {
	scope      *Scope
	cleanups   []cleanupEntry
	cleanupMu  sync.Mutex
	executorID AnyExecutor
}

// OnCleanup registers a cleanup function to be called before the executor
// re-resolves reactively, when it loses its last subscriber, and on Dispose.
// Cleanups run in reverse registration order.
func (ctx *ResolveCtx) OnCleanup(fn func() error) {
	ctx.cleanupMu.Lock()
	defer ctx.cleanupMu.Unlock()

	entry := cleanupEntry{
		fn:    fn,
		order: len(ctx.cleanups),
	}
	ctx.cleanups = append(ctx.cleanups, entry)
}

func (ctx *ResolveCtx) takeCleanups() []cleanupEntry {
	ctx.cleanupMu.Lock()
	defer ctx.cleanupMu.Unlock()

	entries := ctx.cleanups
	ctx.cleanups = nil
	return entries
}

// Scope returns the scope resolving the executor
func (ctx *ResolveCtx) Scope() *Scope {
	return ctx.scope
}

// GetTag retrieves a tag value from the scope
func (ctx *ResolveCtx) GetTag(tag any) (any, bool) {
	return ctx.scope.GetTag(tag)
}

// GetTag retrieves a typed tag value from the scope
func GetTag[T any](ctx *ResolveCtx, tag Tag[T]) (T, bool) {
	return tag.GetFromScope(ctx.scope)
}

// GetTagOrDefault retrieves a typed tag or returns a default value
func GetTagOrDefault[T any](ctx *ResolveCtx, tag Tag[T], defaultVal T) T {
	if val, ok := tag.GetFromScope(ctx.scope); ok {
		return val
	}
	return defaultVal
}
