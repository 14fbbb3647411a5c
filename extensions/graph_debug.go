package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	gql "github.com/pumped-fn/pumped-gql"
)

// GraphDebugExtension logs the reactive dependency graph when a resolve fails.
//
// Usage:
//
//	// Human-readable formatted output (with line breaks)
//	handler := extensions.NewHumanHandler(os.Stderr, slog.LevelError)
//	ext := extensions.NewGraphDebugExtension(handler)
//
//	// Structured JSON logging (compact, machine-readable)
//	handler := slog.NewJSONHandler(os.Stderr, nil)
//	ext := extensions.NewGraphDebugExtension(handler)
//
//	// Silent (for testing)
//	ext := extensions.NewGraphDebugExtension(extensions.NewSilentHandler())
//
// Failures are logged at ERROR level.
type GraphDebugExtension struct {
	gql.BaseExtension

	mu                sync.Mutex
	resolvedExecutors map[gql.AnyExecutor]bool
	failedExecutors   map[gql.AnyExecutor]error
	logger            *slog.Logger
}

// NewGraphDebugExtension creates a new graph debug extension.
// logHandler: slog.Handler for logging (use HumanHandler for formatted output, or any other slog.Handler)
func NewGraphDebugExtension(logHandler slog.Handler) *GraphDebugExtension {
	return &GraphDebugExtension{
		BaseExtension:     gql.NewBaseExtension("graph-debug"),
		resolvedExecutors: make(map[gql.AnyExecutor]bool),
		failedExecutors:   make(map[gql.AnyExecutor]error),
		logger:            slog.New(logHandler),
	}
}

// Wrap tracks resolutions for the graph report
func (e *GraphDebugExtension) Wrap(ctx context.Context, next func() (any, error), op *gql.Operation) (any, error) {
	result, err := next()
	if op.Kind != gql.OpResolve {
		return result, err
	}

	e.mu.Lock()
	if err == nil {
		e.resolvedExecutors[op.Executor] = true
		delete(e.failedExecutors, op.Executor)
	} else {
		e.failedExecutors[op.Executor] = err
	}
	e.mu.Unlock()

	return result, err
}

// OnError logs the dependency graph when resolution fails
func (e *GraphDebugExtension) OnError(err error, op *gql.Operation, scope *gql.Scope) {
	graphOutput := e.formatDependencyGraph(scope, op.Executor, err)

	e.logger.Error("Dependency Resolution Error",
		"executor", gql.ExecutorName(op.Executor),
		"error", err.Error(),
		"operation", string(op.Kind),
		"dependency_graph", graphOutput,
	)
}

func (e *GraphDebugExtension) formatDependencyGraph(scope *gql.Scope, failedExecutor gql.AnyExecutor, failedErr error) string {
	var sb strings.Builder
	graph := scope.ExportDependencyGraph()

	if len(graph) == 0 {
		sb.WriteString("\n(empty - no reactive dependencies tracked)")
		return sb.String()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	parents := make([]gql.AnyExecutor, 0, len(graph))
	for parent := range graph {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool {
		return gql.ExecutorName(parents[i]) < gql.ExecutorName(parents[j])
	})

	sb.WriteString("\n")

	for _, parent := range parents {
		children := graph[parent]
		parentName := gql.ExecutorName(parent)

		parentStatus := ""
		if e.resolvedExecutors[parent] {
			parentStatus = " ✓"
		} else if _, failed := e.failedExecutors[parent]; failed {
			parentStatus = " ❌"
		}

		if len(children) == 0 {
			sb.WriteString(fmt.Sprintf("  %s%s (no dependents)\n", parentName, parentStatus))
			continue
		}

		sb.WriteString(fmt.Sprintf("  %s%s\n", parentName, parentStatus))

		for i, child := range children {
			childName := gql.ExecutorName(child)

			if child == failedExecutor {
				childName = childName + " ❌ FAILED"
			} else if e.resolvedExecutors[child] {
				childName = childName + " ✓"
			} else if childErr, failed := e.failedExecutors[child]; failed {
				childName = fmt.Sprintf("%s ❌ (error: %v)", childName, childErr)
			} else {
				childName = childName + " (pending)"
			}

			if i == len(children)-1 {
				sb.WriteString(fmt.Sprintf("    └─> %s\n", childName))
			} else {
				sb.WriteString(fmt.Sprintf("    ├─> %s\n", childName))
			}
		}
	}

	if failedErr != nil {
		sb.WriteString("\nError Details:\n")
		sb.WriteString(fmt.Sprintf("  Executor: %s\n", gql.ExecutorName(failedExecutor)))
		sb.WriteString(fmt.Sprintf("  Error: %v\n", failedErr))
	}

	return sb.String()
}

// SilentHandler is a slog.Handler that discards all log output
// Useful for testing when you don't want log output
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}

// HumanHandler is a slog.Handler that formats logs for human readability
// with proper line breaks and visual formatting (especially for dependency graphs)
type HumanHandler struct {
	mu     *sync.Mutex
	writer io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
}

// NewHumanHandler creates a new human-readable log handler
func NewHumanHandler(writer io.Writer, level slog.Leveler) *HumanHandler {
	return &HumanHandler{
		mu:     &sync.Mutex{},
		writer: writer,
		level:  level,
	}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if record.Message == "Dependency Resolution Error" {
		return h.handleDependencyError(record)
	}

	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	for _, a := range h.attrs {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			return err
		}
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) handleDependencyError(record slog.Record) error {
	var executor, errorMsg, operation, dependencyGraph string

	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "executor":
			executor = a.Value.String()
		case "error":
			errorMsg = a.Value.String()
		case "operation":
			operation = a.Value.String()
		case "dependency_graph":
			dependencyGraph = a.Value.String()
		}
		return true
	})

	writes := []func() error{
		func() error { _, err := fmt.Fprintln(h.writer); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer, "[GraphDebug] Dependency Resolution Error"); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nFailed Executor: %s\n", executor); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Error: %s\n", errorMsg); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Operation: %s\n", operation); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nDependency Graph:%s", dependencyGraph); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer); return err },
	}

	for _, write := range writes {
		if err := write(); err != nil {
			return err
		}
	}

	return nil
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *HumanHandler) WithGroup(name string) slog.Handler {
	// Groups are flattened.
	return h
}
