package extensions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"

	gql "github.com/pumped-fn/pumped-gql"
)

func countFor(t *testing.T, executor, operation, outcome string) int64 {
	t.Helper()
	rows, err := view.RetrieveData(OperationCountView.Name)
	require.NoError(t, err)
	for _, row := range rows {
		tags := map[string]string{}
		for _, tg := range row.Tags {
			tags[tg.Key.Name()] = tg.Value
		}
		if tags["executor"] == executor && tags["operation"] == operation && tags["outcome"] == outcome {
			return row.Data.(*view.CountData).Value
		}
	}
	return 0
}

func TestMetricsExtension(t *testing.T) {
	require.NoError(t, RegisterMetricViews())
	defer UnregisterMetricViews()

	scope := gql.NewScope(gql.WithExtension(NewMetricsExtension(nil)))
	defer scope.Dispose()

	n := gql.Value(1, gql.WithName("metrics.n"))
	failing := gql.Provide(func(ctx *gql.ResolveCtx) (int, error) {
		return 0, errors.New("boom")
	}, gql.WithName("metrics.failing"))

	_, err := gql.Resolve(scope, n)
	require.NoError(t, err)
	require.NoError(t, gql.Update(context.Background(), scope, n, 2))
	_, err = gql.Resolve(scope, failing)
	require.Error(t, err)

	assert.Equal(t, int64(1), countFor(t, "metrics.n", "resolve", "ok"))
	assert.Equal(t, int64(1), countFor(t, "metrics.n", "update", "ok"))
	assert.Equal(t, int64(1), countFor(t, "metrics.failing", "resolve", "error"))

	rows, err := view.RetrieveData(OperationLatencyView.Name)
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestMetricsExtension_CleanupErrors(t *testing.T) {
	require.NoError(t, RegisterMetricViews())
	defer UnregisterMetricViews()

	ext := NewMetricsExtension(nil)
	scope := gql.NewScope(gql.WithExtension(ext))

	conn := gql.Provide(func(ctx *gql.ResolveCtx) (int, error) {
		ctx.OnCleanup(func() error { return errors.New("close failed") })
		return 1, nil
	}, gql.WithName("metrics.conn"))

	_, err := gql.Resolve(scope, conn)
	require.NoError(t, err)
	require.NoError(t, scope.Dispose())

	rows, err := view.RetrieveData(CleanupErrorView.Name)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.0, rows[0].Data.(*view.SumData).Value)

	assert.Equal(t, 10, ext.Order())
}
