// Package gql is a reactive GraphQL query pipeline.
//
// # Overview
//
// A query is described by three independent pieces of state, each held by an
// executor in a Scope:
//
//  1. The request: query document and variables (RequestTracker)
//  2. The execution context: request policy, poll interval and passthrough
//     fields such as headers (ContextTracker)
//  3. The pause flag (PauseGate)
//
// A source executor derives from the request and the context and asks the
// client for a new result Source whenever either changes in a way that
// matters. The OperationCoordinator combines the source with the pause flag,
// and a QueryStore folds the results into ResultSnapshot values.
//
// # Basic Usage
//
//	gql.SetClient(transport.Options{URL: "https://example.com/graphql"})
//
//	store := gql.Query[Hero](gql.QueryArgs{
//	    Query:     `query Hero($id: ID!) { hero(id: $id) { name } }`,
//	    Variables: map[string]any{"id": "1"},
//	})
//
//	unsubscribe := store.Subscribe(func(s gql.ResultSnapshot[Hero]) {
//	    if s.Fetching {
//	        return
//	    }
//	    fmt.Println(s.Data.Name, s.Error)
//	})
//	defer unsubscribe()
//
// Nothing is sent until the first subscriber arrives. The last unsubscribe
// cancels the running source.
//
// # Changing a Query
//
// OnChange applies a partial update. Every field given in one call is applied
// as a single batch, so changing both variables and the request policy starts
// exactly one new source:
//
//	store.OnChange(ctx,
//	    gql.WithVariables(map[string]any{"id": "2"}),
//	    gql.WithRequestPolicy(types.NetworkOnly),
//	)
//
// Updates that leave the request key unchanged (for example re-ordered
// variables or a re-indented document) do not refetch. Pausing cancels the
// running source and resuming starts a new one:
//
//	store.OnChange(ctx, gql.WithPause(true))
//
// # Scopes and Executors
//
// The pipeline is built on a small reactive container. Executors are created
// with Provide, Value and Derive1..Derive3 and resolved lazily within a Scope:
//
//	scope := gql.NewScope()
//	defer scope.Dispose()
//
//	count := gql.Value(1, gql.Comparable[int]())
//	doubled := gql.Derive1(
//	    count.Reactive(),
//	    func(ctx *gql.ResolveCtx, c *gql.Controller[int]) (int, error) {
//	        v, err := c.Get()
//	        return v * 2, err
//	    },
//	)
//
// A reactive dependent is re-resolved only while it is active, that is while
// something subscribes to it directly or through its dependents:
//
//	stop := gql.Subscribe(scope, doubled, func(v int) { fmt.Println(v) })
//	defer stop()
//
//	_ = gql.Update(ctx, scope, count, 5) // prints 10
//
// Apply updates several executors at once; each dependent runs at most once
// per batch:
//
//	_ = scope.Apply(ctx, gql.Set(count, 2), gql.Set(other, "x"))
//
// An executor created with WithEquality or Comparable swallows updates equal
// to its current value.
//
// # Cleanup
//
// Factories register cleanups with ResolveCtx.OnCleanup. They run in reverse
// order when the executor is re-resolved, when its last subscriber leaves and
// when the scope is disposed:
//
//	conn := gql.Provide(func(ctx *gql.ResolveCtx) (*Conn, error) {
//	    c := Dial()
//	    ctx.OnCleanup(c.Close)
//	    return c, nil
//	})
//
// # Extensions
//
// Extensions observe resolutions and updates:
//
//	scope := gql.NewScope(
//	    gql.WithExtension(extensions.NewLoggingExtension(logger)),
//	    gql.WithExtension(extensions.NewMetricsExtension(logger)),
//	)
//
// See the extensions package for the bundled ones.
//
// # Clients
//
// A Query uses the client registered with SetClient or UseClient unless
// WithClient names one. The transport package provides the HTTP client; any
// types.Client works, which keeps tests free of the network.
package gql
