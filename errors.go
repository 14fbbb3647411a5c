package gql

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrScopeDisposed is returned by operations on a disposed scope.
var ErrScopeDisposed = errors.New("scope is disposed")

type ResolveError struct {
	ExecutorID AnyExecutor
	Cause      error
	Context    string
	StackTrace []byte
}

func (e *ResolveError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("resolve error in executor %s during %s: %v", ExecutorName(e.ExecutorID), e.Context, e.Cause)
	}
	return fmt.Sprintf("resolve error in executor %s: %v", ExecutorName(e.ExecutorID), e.Cause)
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// CleanupError contains information about a cleanup failure
type CleanupError struct {
	ExecutorID AnyExecutor
	Err        error
	Context    string // "reactive", "deactivate", "release" or "dispose"
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup of executor %s failed during %s: %v", ExecutorName(e.ExecutorID), e.Context, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

func CreateResolveError(executor AnyExecutor, cause error, context string) *ResolveError {
	var resolveErr *ResolveError
	if errors.As(cause, &resolveErr) {
		return resolveErr
	}
	return &ResolveError{
		ExecutorID: executor,
		Cause:      cause,
		Context:    context,
		StackTrace: debug.Stack(),
	}
}

// ExecutorName returns the NameTag of exec, or its address when untagged.
func ExecutorName(exec AnyExecutor) string {
	if exec == nil {
		return "<nil>"
	}
	if name, ok := NameTag.Get(exec); ok {
		return name
	}
	return fmt.Sprintf("Executor_%p", exec)
}
