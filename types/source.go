package types

// Source is a lazy, push-based producer of operation results. Nothing happens
// until Subscribe; the returned cancel stops the producer, after which next and
// complete are never called again. A source may be finite (calls complete) or
// infinite (poll mode).
type Source interface {
	Subscribe(next func(OperationResult), complete func()) (cancel func())
}

// SourceFunc adapts a function to Source.
type SourceFunc func(next func(OperationResult), complete func()) (cancel func())

// Subscribe implements Source.
func (f SourceFunc) Subscribe(next func(OperationResult), complete func()) func() {
	if f == nil {
		complete()
		return func() {}
	}
	return f(next, complete)
}

// Client is the transport collaborator driven by the query pipeline.
type Client interface {
	ExecuteQuery(req Request, ctx ExecutionContext) Source
}

// ClientFunc adapts a function to Client.
type ClientFunc func(req Request, ctx ExecutionContext) Source

// ExecuteQuery implements Client.
func (f ClientFunc) ExecuteQuery(req Request, ctx ExecutionContext) Source {
	return f(req, ctx)
}

// FromResults returns a finite source that emits results synchronously on
// subscribe and then completes.
func FromResults(results ...OperationResult) Source {
	return SourceFunc(func(next func(OperationResult), complete func()) func() {
		for _, r := range results {
			next(r)
		}
		complete()
		return func() {}
	})
}
