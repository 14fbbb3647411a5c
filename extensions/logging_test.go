package extensions

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gql "github.com/pumped-fn/pumped-gql"
)

func TestLoggingExtension(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	scope := gql.NewScope(gql.WithExtension(NewLoggingExtension(logger)))
	defer scope.Dispose()

	ok := gql.Value(1, gql.WithName("logging.ok"))
	failing := gql.Provide(func(ctx *gql.ResolveCtx) (int, error) {
		return 0, errors.New("boom")
	}, gql.WithName("logging.failing"))

	_, err := gql.Resolve(scope, ok)
	require.NoError(t, err)
	require.NoError(t, gql.Update(context.Background(), scope, ok, 2))
	_, err = gql.Resolve(scope, failing)
	require.Error(t, err)

	output := buf.String()
	assert.Contains(t, output, `msg="operation completed" operation=resolve executor=logging.ok`)
	assert.Contains(t, output, `msg="operation completed" operation=update executor=logging.ok`)
	assert.Contains(t, output, `level=ERROR msg="operation failed" operation=resolve executor=logging.failing`)
}

func TestLoggingExtension_HandlesCleanupErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ext := NewLoggingExtension(logger)
	handled := ext.OnCleanupError(&gql.CleanupError{
		ExecutorID: gql.Value(0, gql.WithName("logging.conn")),
		Err:        errors.New("close failed"),
		Context:    "dispose",
	})

	assert.True(t, handled)
	assert.Contains(t, buf.String(), `level=WARN msg="cleanup failed" executor=logging.conn context=dispose error="close failed"`)
}
