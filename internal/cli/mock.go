package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pumped-fn/pumped-gql/internal/mockserver"
)

// MockOptions holds flags for the mock command.
type MockOptions struct {
	*RootOptions
	Fixtures string
	Addr     string

	// ready, when set, receives the listener address once the server accepts
	// connections (for testing).
	ready func(addr string)
}

// NewMockCommand creates the mock command.
func NewMockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve canned GraphQL responses",
		Long: `Start a GraphQL endpoint that answers from a YAML fixtures file.

Each fixture matches on a fragment of the normalized query document and,
optionally, on the variables.

Example:
  gqlwatch mock --fixtures fixtures.yaml --addr :4000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMock(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Fixtures, "fixtures", "", "path to the fixtures file (required)")
	cmd.Flags().StringVar(&opts.Addr, "addr", ":4000", "listen address")
	_ = cmd.MarkFlagRequired("fixtures")

	return cmd
}

func runMock(cmd *cobra.Command, opts *MockOptions) error {
	fixtures, err := mockserver.LoadFixtures(opts.Fixtures)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load fixtures", err)
	}

	c, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.newLogger(c, cmd.ErrOrStderr())

	listener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to listen", err)
	}

	srv := &http.Server{
		Handler:           mockserver.New(fixtures, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	logger.Info("mock server listening",
		"addr", listener.Addr().String(),
		"fixtures", len(fixtures.Responses))
	if opts.ready != nil {
		opts.ready(listener.Addr().String())
	}

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "mock server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down mock server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "mock server shutdown failed", err)
	}
	return nil
}
