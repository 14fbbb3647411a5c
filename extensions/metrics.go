package extensions

import (
	"context"
	"log/slog"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	gql "github.com/pumped-fn/pumped-gql"
)

var (
	executorTagKey  = tag.MustNewKey("executor")
	operationTagKey = tag.MustNewKey("operation")
	outcomeTagKey   = tag.MustNewKey("outcome")

	operationCountMeasure   = stats.Int64("pumped_gql/operations", "executor operations", stats.UnitDimensionless)
	operationLatencyMeasure = stats.Float64("pumped_gql/operation_latency", "executor operation latency", stats.UnitMilliseconds)
	cleanupErrorMeasure     = stats.Int64("pumped_gql/cleanup_errors", "failed cleanups", stats.UnitDimensionless)
)

// Views exposed by MetricsExtension. Register them with RegisterMetricViews
// or view.Register before reading data.
var (
	OperationCountView = &view.View{
		Name:        "pumped_gql/operations",
		Measure:     operationCountMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{executorTagKey, operationTagKey, outcomeTagKey},
	}
	OperationLatencyView = &view.View{
		Name:        "pumped_gql/operation_latency",
		Measure:     operationLatencyMeasure,
		Aggregation: view.Distribution(0, 1, 5, 10, 50, 100, 500, 1000),
		TagKeys:     []tag.Key{executorTagKey, operationTagKey},
	}
	CleanupErrorView = &view.View{
		Name:        "pumped_gql/cleanup_errors",
		Measure:     cleanupErrorMeasure,
		Aggregation: view.Sum(),
		TagKeys:     []tag.Key{executorTagKey},
	}
)

// RegisterMetricViews registers every view of MetricsExtension.
func RegisterMetricViews() error {
	return view.Register(OperationCountView, OperationLatencyView, CleanupErrorView)
}

// UnregisterMetricViews drops the views and their collected data.
func UnregisterMetricViews() {
	view.Unregister(OperationCountView, OperationLatencyView, CleanupErrorView)
}

// MetricsExtension records OpenCensus stats for resolves, updates and
// cleanup failures.
type MetricsExtension struct {
	gql.BaseExtension
	logger *slog.Logger
}

// NewMetricsExtension creates a metrics extension. Failures to tag a
// measurement are logged to logger, which may be nil.
func NewMetricsExtension(logger *slog.Logger) *MetricsExtension {
	if logger == nil {
		logger = slog.New(NewSilentHandler())
	}
	return &MetricsExtension{
		BaseExtension: gql.NewBaseExtension("metrics"),
		logger:        logger,
	}
}

func (e *MetricsExtension) Order() int {
	return 10
}

func (e *MetricsExtension) Wrap(ctx context.Context, next func() (any, error), op *gql.Operation) (any, error) {
	start := time.Now()
	result, err := next()
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	tagCtx, tagErr := tag.New(ctx,
		tag.Upsert(executorTagKey, gql.ExecutorName(op.Executor)),
		tag.Upsert(operationTagKey, string(op.Kind)),
	)
	if tagErr != nil {
		e.logger.Error("failed to create metric tags", "error", tagErr)
		return result, err
	}
	stats.Record(tagCtx, operationLatencyMeasure.M(elapsed))

	countCtx, tagErr := tag.New(tagCtx, tag.Upsert(outcomeTagKey, outcome))
	if tagErr == nil {
		stats.Record(countCtx, operationCountMeasure.M(1))
	}

	return result, err
}

func (e *MetricsExtension) OnCleanupError(err *gql.CleanupError) bool {
	ctx, tagErr := tag.New(context.Background(), tag.Upsert(executorTagKey, gql.ExecutorName(err.ExecutorID)))
	if tagErr != nil {
		e.logger.Error("failed to create metric tags", "error", tagErr)
		return false
	}
	stats.Record(ctx, cleanupErrorMeasure.M(1))
	// Recording does not handle the failure; later extensions still see it.
	return false
}
