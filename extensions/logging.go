package extensions

import (
	"context"
	"log/slog"
	"time"

	gql "github.com/pumped-fn/pumped-gql"
)

// LoggingExtension logs all operations
type LoggingExtension struct {
	gql.BaseExtension
	logger *slog.Logger
}

// NewLoggingExtension creates a new logging extension writing to logger
func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExtension{
		BaseExtension: gql.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *gql.Operation) (any, error) {
	start := time.Now()
	name := gql.ExecutorName(op.Executor)
	e.logger.DebugContext(ctx, "operation starting", "operation", op.Kind, "executor", name)

	result, err := next()

	duration := time.Since(start)
	if err != nil {
		e.logger.ErrorContext(ctx, "operation failed",
			"operation", op.Kind,
			"executor", name,
			"duration", duration,
			"error", err)
	} else {
		e.logger.DebugContext(ctx, "operation completed",
			"operation", op.Kind,
			"executor", name,
			"duration", duration)
	}

	return result, err
}

func (e *LoggingExtension) OnCleanupError(err *gql.CleanupError) bool {
	e.logger.Warn("cleanup failed",
		"executor", gql.ExecutorName(err.ExecutorID),
		"context", err.Context,
		"error", err.Err)
	return true
}
