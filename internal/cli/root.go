package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/pumped-fn/pumped-gql/config"
	"github.com/pumped-fn/pumped-gql/extensions"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the gqlwatch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gqlwatch",
		Short: "Watch GraphQL query results",
		Long:  "Run GraphQL queries through the reactive query pipeline and print every result snapshot.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewMockCommand(opts))

	return cmd
}

// loadConfig loads the configuration named by --config, or the defaults.
func (o *RootOptions) loadConfig() (config.Config, error) {
	c, err := config.Load(o.ConfigFile)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return c, nil
}

// newLogger builds the diagnostic logger. It writes to w, usually stderr.
func (o *RootOptions) newLogger(c config.Config, w io.Writer) *slog.Logger {
	level := c.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch c.Log.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	case "human":
		return slog.New(extensions.NewHumanHandler(w, level))
	default:
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
}
