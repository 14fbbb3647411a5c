package cli

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v3"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockServesFixtures(t *testing.T) {
	helpers.WithTempFile(func(path string) {
		require.NoError(t, os.WriteFile(path, []byte(`
responses:
  - match: hero
    body:
      data: {hero: {name: Luke}}
`), 0o600))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cmd := &cobra.Command{}
		cmd.SetContext(ctx)
		cmd.SetErr(io.Discard)

		addrCh := make(chan string, 1)
		opts := &MockOptions{
			RootOptions: &RootOptions{Format: "text"},
			Fixtures:    path,
			Addr:        "127.0.0.1:0",
			ready:       func(addr string) { addrCh <- addr },
		}

		errCh := make(chan error, 1)
		go func() { errCh <- runMock(cmd, opts) }()

		addr := helpers.RequireValue(t, addrCh, 5*time.Second, "mock server did not start")

		res, err := http.Post("http://"+addr+"/graphql", "application/json",
			strings.NewReader(`{"query":"{ hero { name } }"}`))
		require.NoError(t, err)
		body, err := io.ReadAll(res.Body)
		require.NoError(t, res.Body.Close())
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.JSONEq(t, `{"data":{"hero":{"name":"Luke"}}}`, string(body))

		cancel()
		assert.NoError(t, helpers.RequireValue(t, errCh, 5*time.Second, "mock server did not stop"))
	})
}

func TestMockMissingFixtures(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"mock", "--fixtures", "/nonexistent/fixtures.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
