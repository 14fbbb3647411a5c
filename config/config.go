// Package config loads the settings of the gqlwatch command: the GraphQL
// client, the watched query and logging. Values come from a YAML file and are
// then overridden by environment variables.
package config

import (
	"log/slog"
	"time"

	ct "github.com/launchdarkly/go-configtypes"

	"github.com/pumped-fn/pumped-gql/transport"
	"github.com/pumped-fn/pumped-gql/types"
)

const (
	// DefaultURL is the endpoint used when none is configured.
	DefaultURL = "http://localhost:4000/graphql"
	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 30 * time.Second
)

// Config is the top-level configuration.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Query  QueryConfig  `yaml:"query"`
	Log    LogConfig    `yaml:"log"`
}

// ClientConfig configures the transport.
type ClientConfig struct {
	URL             ct.OptURLAbsolute `yaml:"url" conf:"GQL_URL"`
	Headers         map[string]string `yaml:"headers"`
	HTTP2           bool              `yaml:"http2" conf:"GQL_HTTP2"`
	HTTPCache       bool              `yaml:"httpCache" conf:"GQL_HTTP_CACHE"`
	PreferGetMethod bool              `yaml:"preferGetMethod" conf:"GQL_PREFER_GET"`
	Timeout         ct.OptDuration    `yaml:"timeout" conf:"GQL_TIMEOUT"`
	RequestPolicy   string            `yaml:"requestPolicy" conf:"GQL_REQUEST_POLICY"`
}

// QueryConfig describes the query to watch. Document takes precedence over File.
type QueryConfig struct {
	Document     string         `yaml:"document"`
	File         string         `yaml:"file" conf:"GQL_QUERY_FILE"`
	Variables    map[string]any `yaml:"variables"`
	PollInterval ct.OptDuration `yaml:"pollInterval" conf:"GQL_POLL_INTERVAL"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" conf:"GQL_LOG_LEVEL"`
	Format string `yaml:"format" conf:"GQL_LOG_FORMAT"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	url, _ := ct.NewOptURLAbsoluteFromString(DefaultURL)
	return Config{
		Client: ClientConfig{
			URL:           url,
			Timeout:       ct.NewOptDuration(DefaultTimeout),
			RequestPolicy: string(types.DefaultRequestPolicy),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ClientOptions converts the client section into transport options.
func (c Config) ClientOptions(logger *slog.Logger) transport.Options {
	opts := transport.Options{
		Headers:         c.Client.Headers,
		HTTP2:           c.Client.HTTP2,
		HTTPCache:       c.Client.HTTPCache,
		PreferGetMethod: c.Client.PreferGetMethod,
		Timeout:         c.Client.Timeout.GetOrElse(DefaultTimeout),
		RequestPolicy:   types.RequestPolicy(c.Client.RequestPolicy),
		Logger:          logger,
	}
	if c.Client.URL.IsDefined() {
		opts.URL = c.Client.URL.String()
	}
	return opts
}

// SlogLevel returns the configured log level, Info when unset.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
