package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opencensus.io/stats/view"

	gql "github.com/pumped-fn/pumped-gql"
	"github.com/pumped-fn/pumped-gql/config"
	"github.com/pumped-fn/pumped-gql/extensions"
	"github.com/pumped-fn/pumped-gql/types"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	URL          string
	Query        string
	QueryFile    string
	Variables    string
	Policy       string
	PollInterval time.Duration
	Count        int
	WatchConfig  bool
	Metrics      bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run a query and print every result snapshot",
		Long: `Run a GraphQL query through the query pipeline and print each snapshot
of its result as it changes.

Flags override the configuration file and environment.

Example:
  gqlwatch watch --url http://localhost:4000/graphql --query '{ hero { name } }'
  gqlwatch watch -c gqlwatch.yaml --poll 5s --watch-config`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "GraphQL endpoint")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query document")
	cmd.Flags().StringVar(&opts.QueryFile, "query-file", "", "file containing the query document")
	cmd.Flags().StringVar(&opts.Variables, "variables", "", "query variables as a JSON object")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "request policy (cache-first|cache-only|network-only|cache-and-network)")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll", 0, "refetch interval, 0 disables polling")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 0, "exit after this many settled results, 0 runs until interrupted")
	cmd.Flags().BoolVar(&opts.WatchConfig, "watch-config", false, "reload the configuration file on change")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "log pipeline metrics on exit")

	return cmd
}

// applyFlags merges explicitly set flags into c.
func (o *WatchOptions) applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("url") {
		if err := c.Client.URL.UnmarshalText([]byte(o.URL)); err != nil {
			return fmt.Errorf("--url: %w", err)
		}
	}
	if flags.Changed("query") {
		c.Query.Document = o.Query
	}
	if flags.Changed("query-file") {
		c.Query.Document = ""
		c.Query.File = o.QueryFile
	}
	if flags.Changed("variables") {
		var vars map[string]any
		if err := json.Unmarshal([]byte(o.Variables), &vars); err != nil {
			return fmt.Errorf("--variables: %w", err)
		}
		c.Query.Variables = vars
	}
	if flags.Changed("policy") {
		c.Client.RequestPolicy = o.Policy
	}
	if flags.Changed("poll") {
		if err := c.Query.PollInterval.UnmarshalText([]byte(o.PollInterval.String())); err != nil {
			return fmt.Errorf("--poll: %w", err)
		}
	}
	return c.Validate()
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	c, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := opts.applyFlags(cmd, &c); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	logger := opts.newLogger(c, cmd.ErrOrStderr())

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.Metrics {
		if err := extensions.RegisterMetricViews(); err != nil {
			return WrapExitError(ExitCommandError, "failed to register metric views", err)
		}
		defer func() {
			logMetrics(logger)
			extensions.UnregisterMetricViews()
		}()
	}

	w := &watcher{
		opts:    opts,
		logger:  logger,
		printer: &SnapshotPrinter{Format: opts.Format, Writer: cmd.OutOrStdout()},
		done:    cancel,
	}

	if err := w.start(ctx, c); err != nil {
		return err
	}
	defer w.stop()

	if opts.WatchConfig && opts.ConfigFile != "" {
		go func() {
			err := config.Watch(ctx, opts.ConfigFile, logger, func(next config.Config) {
				if err := opts.applyFlags(cmd, &next); err != nil {
					logger.Warn("ignoring reloaded configuration", "error", err)
					return
				}
				if err := w.start(ctx, next); err != nil {
					logger.Warn("failed to restart query", "error", err)
				}
			})
			if err != nil {
				logger.Error("configuration watcher stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()

	if lastErr := w.lastError(); lastErr != nil && opts.Count > 0 {
		return WrapExitError(ExitFailure, "query failed", lastErr)
	}
	return nil
}

// watcher runs one query at a time. A configuration change with the same
// client settings updates the running query; otherwise the query is stopped
// and a new one started against a new client.
type watcher struct {
	opts    *WatchOptions
	logger  *slog.Logger
	printer *SnapshotPrinter
	done    func()

	mu      sync.Mutex
	store   *gql.QueryStore[json.RawMessage]
	client  config.ClientConfig
	unsub   func()
	settled int
	lastErr error
	last    *gql.ResultSnapshot[json.RawMessage]
}

func (w *watcher) start(ctx context.Context, c config.Config) error {
	document, err := c.QueryDocument()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read query", err)
	}
	if document == "" {
		return NewExitError(ExitCommandError, "no query given: use --query, --query-file or the configuration file")
	}
	args := gql.QueryArgs{
		Query:         document,
		Variables:     c.Query.Variables,
		RequestPolicy: types.RequestPolicy(c.Client.RequestPolicy),
		PollInterval:  c.Query.PollInterval.GetOrElse(0),
	}

	w.mu.Lock()
	current, client := w.store, w.client
	w.mu.Unlock()

	if current != nil && reflect.DeepEqual(client, c.Client) {
		w.logger.Debug("updating query",
			"policy", c.Client.RequestPolicy,
			"poll_interval", args.PollInterval)
		return current.OnChange(ctx,
			gql.WithQuery(args.Query),
			gql.WithVariables(args.Variables),
			gql.WithRequestPolicy(args.RequestPolicy),
			gql.WithPollInterval(args.PollInterval))
	}

	w.stop()

	scopeOpts := []gql.ScopeOption{
		gql.WithExtension(extensions.NewGraphDebugExtension(w.logger.Handler())),
	}
	if w.opts.Metrics {
		scopeOpts = append(scopeOpts, gql.WithExtension(extensions.NewMetricsExtension(w.logger)))
	}
	if w.opts.Verbose {
		scopeOpts = append(scopeOpts, gql.WithExtension(extensions.NewLoggingExtension(w.logger)))
	}

	store := gql.Query[json.RawMessage](args,
		gql.WithClient(gql.SetClient(c.ClientOptions(w.logger))),
		gql.WithLogger(w.logger),
		gql.WithScopeOptions(scopeOpts...),
	)

	w.logger.Debug("starting query",
		"url", c.Client.URL.String(),
		"policy", c.Client.RequestPolicy,
		"poll_interval", args.PollInterval)

	w.mu.Lock()
	w.store = store
	w.client = c.Client
	w.last = nil
	w.mu.Unlock()

	unsub := store.Subscribe(w.onSnapshot)

	w.mu.Lock()
	w.unsub = unsub
	w.mu.Unlock()
	return nil
}

func (w *watcher) onSnapshot(s gql.ResultSnapshot[json.RawMessage]) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.opts.Count > 0 && w.settled >= w.opts.Count {
		return
	}
	if w.last != nil && sameSnapshot(*w.last, s) {
		return
	}
	w.last = &s
	if err := w.printer.Print(s); err != nil {
		w.logger.Error("failed to print snapshot", "error", err)
	}

	if s.Fetching || (!s.HasData && s.Error == nil) {
		return
	}
	w.lastErr = s.Error
	w.settled++
	if w.opts.Count > 0 && w.settled >= w.opts.Count {
		w.done()
	}
}

// sameSnapshot reports whether b would print exactly like a.
func sameSnapshot(a, b gql.ResultSnapshot[json.RawMessage]) bool {
	return a.Fetching == b.Fetching &&
		a.Stale == b.Stale &&
		a.HasData == b.HasData &&
		bytes.Equal(a.Data, b.Data) &&
		errorText(a.Error) == errorText(b.Error) &&
		a.Operation == b.Operation
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (w *watcher) lastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *watcher) stop() {
	w.mu.Lock()
	unsub := w.unsub
	w.unsub = nil
	w.store = nil
	w.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func logMetrics(logger *slog.Logger) {
	for _, v := range []*view.View{extensions.OperationCountView, extensions.CleanupErrorView} {
		rows, err := view.RetrieveData(v.Name)
		if err != nil {
			logger.Warn("failed to read metrics", "view", v.Name, "error", err)
			continue
		}
		for _, row := range rows {
			attrs := []any{"view", v.Name}
			for _, t := range row.Tags {
				attrs = append(attrs, t.Key.Name(), t.Value)
			}
			switch data := row.Data.(type) {
			case *view.CountData:
				attrs = append(attrs, "count", data.Value)
			case *view.SumData:
				attrs = append(attrs, "sum", data.Value)
			}
			logger.Info("metric", attrs...)
		}
	}
}
