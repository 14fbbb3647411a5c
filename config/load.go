package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	ct "github.com/launchdarkly/go-configtypes"
	"gopkg.in/yaml.v3"

	"github.com/pumped-fn/pumped-gql/types"
)

// LoadError reports a configuration file that could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to read configuration file %q: %s", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load builds a Config from the defaults, the file at path (skipped when path
// is empty) and the environment, in that order, and validates it.
func Load(path string) (Config, error) {
	c := DefaultConfig()
	if path != "" {
		if err := LoadFile(&c, path); err != nil {
			return Config{}, err
		}
	}
	if err := LoadEnvironment(&c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile reads a YAML file into c. Fields absent from the file keep their
// current values; unknown fields are rejected.
func LoadFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return &LoadError{Path: path, Err: err}
	}
	return nil
}

// LoadEnvironment overrides c from environment variables.
func LoadEnvironment(c *Config) error {
	reader := ct.NewVarReaderFromEnvironment()

	reader.ReadStruct(&c.Client, false)
	reader.ReadStruct(&c.Query, false)
	reader.ReadStruct(&c.Log, false)

	for name, value := range reader.FindPrefixedValues("GQL_HEADER_") {
		if c.Client.Headers == nil {
			c.Client.Headers = make(map[string]string)
		}
		c.Client.Headers[name] = value
	}

	if !reader.Result().OK() {
		return reader.Result().GetError()
	}
	return nil
}

// Validate checks values that the decoders cannot.
func (c Config) Validate() error {
	var errs []error
	if c.Client.RequestPolicy != "" && !types.RequestPolicy(c.Client.RequestPolicy).Valid() {
		errs = append(errs, fmt.Errorf("client.requestPolicy: unknown request policy %q", c.Client.RequestPolicy))
	}
	if c.Query.PollInterval.GetOrElse(0) < 0 {
		errs = append(errs, errors.New("query.pollInterval: must not be negative"))
	}
	if c.Client.Timeout.GetOrElse(0) < 0 {
		errs = append(errs, errors.New("client.timeout: must not be negative"))
	}
	if c.Log.Level != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
	}
	switch c.Log.Format {
	case "", "text", "json", "human":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// QueryDocument returns the inline document, or the contents of the query file.
func (c Config) QueryDocument() (string, error) {
	if c.Query.Document != "" {
		return c.Query.Document, nil
	}
	if c.Query.File == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Query.File)
	if err != nil {
		return "", &LoadError{Path: c.Query.File, Err: err}
	}
	return string(data), nil
}
