package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gql "github.com/pumped-fn/pumped-gql"
	"github.com/pumped-fn/pumped-gql/config"
	"github.com/pumped-fn/pumped-gql/internal/mockserver"
)

var watchFixtures = mockserver.Fixtures{
	Responses: []mockserver.Response{
		{
			Match: "hero",
			Body:  map[string]any{"data": map[string]any{"hero": map[string]any{"name": "Luke"}}},
		},
		{
			Match:  "broken",
			Status: http.StatusOK,
			Body:   map[string]any{"errors": []any{map[string]any{"message": "resolver failed"}}},
		},
	},
}

func runWatchCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(mockserver.New(watchFixtures, nil).Router())
	t.Cleanup(srv.Close)

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"watch", "--url", srv.URL + mockserver.Path}, args...))

	err := cmd.Execute()
	return stdout.String(), err
}

func TestWatchPrintsSnapshots(t *testing.T) {
	out, err := runWatchCommand(t,
		"--query", "{ hero { name } }",
		"--policy", "network-only",
		"--count", "1",
		"--format", "json",
	)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, out)
	assert.JSONEq(t, `{"fetching":true,"stale":false}`, lines[0])
	assert.JSONEq(t, `{"fetching":false,"stale":false,"data":{"hero":{"name":"Luke"}},"policy":"network-only"}`, lines[1])
}

func TestWatchQueryError(t *testing.T) {
	out, err := runWatchCommand(t,
		"--query", "{ broken }",
		"--policy", "network-only",
		"--count", "1",
	)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "[GraphQL] resolver failed")
	assert.Contains(t, out, `error="[GraphQL] resolver failed"`)
}

func TestWatchRequiresQuery(t *testing.T) {
	_, err := runWatchCommand(t, "--count", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no query given")
}

func TestWatchInvalidVariables(t *testing.T) {
	_, err := runWatchCommand(t, "--query", "{ hero { name } }", "--variables", "{not json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--variables")
}

func TestWatchInvalidPolicy(t *testing.T) {
	_, err := runWatchCommand(t, "--query", "{ hero { name } }", "--policy", "sometimes")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWatcherReload(t *testing.T) {
	srv := httptest.NewServer(mockserver.New(watchFixtures, nil).Router())
	t.Cleanup(srv.Close)

	w := &watcher{
		opts:    &WatchOptions{RootOptions: &RootOptions{Format: "json"}},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		printer: &SnapshotPrinter{Format: "json", Writer: io.Discard},
		done:    func() {},
	}
	defer w.stop()
	ctx := context.Background()

	currentStore := func() *gql.QueryStore[json.RawMessage] {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.store
	}
	settled := func() int {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.settled
	}

	base := config.Config{
		Client: config.ClientConfig{RequestPolicy: "network-only"},
		Query:  config.QueryConfig{Document: "{ hero { name } }"},
	}
	require.NoError(t, base.Client.URL.UnmarshalText([]byte(srv.URL+mockserver.Path)))

	require.NoError(t, w.start(ctx, base))
	require.Eventually(t, func() bool { return settled() == 1 }, time.Second, 10*time.Millisecond)
	first := currentStore()
	require.NotNil(t, first)

	// Same client settings: the running query is updated in place.
	broken := base
	broken.Query.Document = "{ broken }"
	require.NoError(t, w.start(ctx, broken))
	require.Eventually(t, func() bool {
		err := w.lastError()
		return err != nil && strings.Contains(err.Error(), "resolver failed")
	}, time.Second, 10*time.Millisecond)
	assert.Same(t, first, currentStore())

	// New client settings: the old query is stopped and a new one started.
	moved := base
	moved.Client.Headers = map[string]string{"X-Reload": "1"}
	require.NoError(t, w.start(ctx, moved))
	require.Eventually(t, func() bool { return w.lastError() == nil }, time.Second, 10*time.Millisecond)
	assert.NotSame(t, first, currentStore())

	w.stop()
	assert.Nil(t, currentStore())
}
