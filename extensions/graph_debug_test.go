package extensions

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	gql "github.com/pumped-fn/pumped-gql"
)

func TestGraphDebugExtension_OnError(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHumanHandler(&buf, slog.LevelError)

	scope := gql.NewScope(
		gql.WithExtension(NewGraphDebugExtension(handler)),
	)
	defer scope.Dispose()

	query := gql.Value("{ hero { name } }", gql.WithName("Query"))

	source := gql.Derive1(
		query.Reactive(),
		func(ctx *gql.ResolveCtx, q *gql.Controller[string]) (string, error) {
			return "", errors.New("no client registered")
		},
		gql.WithName("Source"),
	)

	_, err := gql.Resolve(scope, source)
	if err == nil {
		t.Fatal("Expected error but got nil")
	}

	output := buf.String()

	if !strings.Contains(output, strings.Repeat("=", 70)) {
		t.Error("Expected separator line with equals signs")
	}

	if !strings.Contains(output, "[GraphDebug] Dependency Resolution Error") {
		t.Error("Expected '[GraphDebug] Dependency Resolution Error' header")
	}

	if !strings.Contains(output, "Failed Executor: Source") {
		t.Errorf("Expected 'Failed Executor: Source', got:\n%s", output)
	}

	if !strings.Contains(output, "no client registered") {
		t.Error("Expected error message in human-readable format")
	}

	if !strings.Contains(output, "Operation: resolve") {
		t.Error("Expected 'Operation: resolve'")
	}

	if !strings.Contains(output, "Query ✓") {
		t.Errorf("Expected resolved dependency to be marked, got:\n%s", output)
	}

	if !strings.Contains(output, "└─> Source ❌ FAILED") {
		t.Errorf("Expected failed dependent to be marked, got:\n%s", output)
	}
}

func TestGraphDebugExtension_EmptyGraph(t *testing.T) {
	var buf bytes.Buffer
	scope := gql.NewScope(
		gql.WithExtension(NewGraphDebugExtension(NewHumanHandler(&buf, slog.LevelError))),
	)
	defer scope.Dispose()

	failing := gql.Provide(func(ctx *gql.ResolveCtx) (int, error) {
		return 0, errors.New("boom")
	}, gql.WithName("Failing"))

	if _, err := gql.Resolve(scope, failing); err == nil {
		t.Fatal("Expected error but got nil")
	}

	if !strings.Contains(buf.String(), "(empty - no reactive dependencies tracked)") {
		t.Errorf("Expected empty graph notice, got:\n%s", buf.String())
	}
}

func TestGraphDebugExtension_JSONHandler(t *testing.T) {
	var buf bytes.Buffer
	scope := gql.NewScope(
		gql.WithExtension(NewGraphDebugExtension(slog.NewJSONHandler(&buf, nil))),
	)
	defer scope.Dispose()

	base := gql.Value(1, gql.WithName("Base"))
	derived := gql.Derive1(base.Reactive(), func(ctx *gql.ResolveCtx, b *gql.Controller[int]) (int, error) {
		return 0, errors.New("derive failed")
	}, gql.WithName("Derived"))

	_, _ = gql.Resolve(scope, derived)

	output := buf.String()
	if !strings.Contains(output, `"msg":"Dependency Resolution Error"`) {
		t.Errorf("Expected structured message, got:\n%s", output)
	}
	if !strings.Contains(output, `"executor":"Derived"`) {
		t.Errorf("Expected executor attribute, got:\n%s", output)
	}
}

func TestGraphDebugExtension_UpdatesAreNotTracked(t *testing.T) {
	ext := NewGraphDebugExtension(NewSilentHandler())
	scope := gql.NewScope(gql.WithExtension(ext))
	defer scope.Dispose()

	n := gql.Value(1)
	if err := gql.Update(context.Background(), scope, n, 2); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	ext.mu.Lock()
	defer ext.mu.Unlock()
	if len(ext.resolvedExecutors) != 0 || len(ext.failedExecutors) != 0 {
		t.Error("Expected updates to be ignored")
	}
}

func TestHumanHandler_PlainRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHumanHandler(&buf, slog.LevelInfo)).With("component", "query")

	logger.Debug("hidden")
	logger.Info("query started", "key", "abc")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("Expected debug record to be filtered")
	}
	expected := "[INFO] query started\n  component: query\n  key: abc\n"
	if output != expected {
		t.Errorf("Expected %q, got %q", expected, output)
	}
}

func TestSilentHandler(t *testing.T) {
	h := NewSilentHandler()
	if h.Enabled(context.Background(), slog.LevelError) {
		t.Error("Expected silent handler to be disabled")
	}
}
