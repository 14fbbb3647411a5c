package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	gql "github.com/pumped-fn/pumped-gql"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The watched query ended with an error
	ExitCommandError = 2 // Command error (invalid configuration, missing query, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// SnapshotPrinter writes result snapshots in the configured format.
type SnapshotPrinter struct {
	Format string
	Writer io.Writer
}

type snapshotJSON struct {
	Fetching   bool            `json:"fetching"`
	Stale      bool            `json:"stale"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
	Policy     string          `json:"policy,omitempty"`
}

// Print writes one snapshot.
func (p *SnapshotPrinter) Print(s gql.ResultSnapshot[json.RawMessage]) error {
	out := snapshotJSON{
		Fetching:   s.Fetching,
		Stale:      s.Stale,
		Extensions: s.Extensions,
	}
	if s.HasData {
		out.Data = s.Data
	}
	if s.Error != nil {
		out.Error = s.Error.Error()
	}
	if s.Operation != nil {
		out.Policy = s.Operation.Context.RequestPolicy.OrDefault().String()
	}

	if p.Format == "json" {
		return json.NewEncoder(p.Writer).Encode(out)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "fetching=%t stale=%t", out.Fetching, out.Stale)
	if out.Policy != "" {
		fmt.Fprintf(&sb, " policy=%s", out.Policy)
	}
	if out.Data != nil {
		fmt.Fprintf(&sb, " data=%s", out.Data)
	}
	if out.Error != "" {
		fmt.Fprintf(&sb, " error=%q", out.Error)
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(p.Writer, sb.String())
	return err
}
