package gql

import (
	"github.com/pumped-fn/pumped-gql/types"
)

// NewSourceFactory derives a fresh source from client every time the request
// identity or the execution context changes. The client is bound once; later
// changes to the client registry do not affect the returned executor.
func NewSourceFactory(
	client types.Client,
	request *Executor[types.Request],
	execCtx *Executor[types.ExecutionContext],
) *Executor[types.Source] {
	return Derive2(
		request.Reactive(),
		execCtx.Reactive(),
		func(ctx *ResolveCtx, req *Controller[types.Request], ec *Controller[types.ExecutionContext]) (types.Source, error) {
			r, err := req.Get()
			if err != nil {
				return nil, err
			}
			c, err := ec.Get()
			if err != nil {
				return nil, err
			}
			ctx.Scope().Logger().Debug("materialising source",
				"key", r.Key,
				"policy", c.RequestPolicy.OrDefault().String(),
				"poll_interval", c.PollInterval)
			return client.ExecuteQuery(r, c.Clone()), nil
		},
		WithName("source"),
	)
}
