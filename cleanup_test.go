package gql

import (
	"context"
	"errors"
	"testing"
)

func TestCleanup_Basic(t *testing.T) {
	scope := NewScope()

	cleaned := []string{}

	exec := Provide(func(ctx *ResolveCtx) (string, error) {
		ctx.OnCleanup(func() error {
			cleaned = append(cleaned, "resource")
			return nil
		})
		return "value", nil
	})

	_, err := Resolve(scope, exec)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := scope.Dispose(); err != nil {
		t.Fatalf("dispose failed: %v", err)
	}

	if len(cleaned) != 1 || cleaned[0] != "resource" {
		t.Errorf("expected cleanup to be called once, got %v", cleaned)
	}
}

func TestCleanup_LIFOOrder(t *testing.T) {
	scope := NewScope()

	cleaned := []string{}

	exec := Provide(func(ctx *ResolveCtx) (string, error) {
		ctx.OnCleanup(func() error {
			cleaned = append(cleaned, "first")
			return nil
		})
		ctx.OnCleanup(func() error {
			cleaned = append(cleaned, "second")
			return nil
		})
		ctx.OnCleanup(func() error {
			cleaned = append(cleaned, "third")
			return nil
		})
		return "value", nil
	})

	_, err := Resolve(scope, exec)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_ = scope.Dispose()

	expected := []string{"third", "second", "first"}
	if len(cleaned) != len(expected) {
		t.Fatalf("expected %d cleanups, got %d", len(expected), len(cleaned))
	}

	for i, v := range expected {
		if cleaned[i] != v {
			t.Errorf("at index %d: expected %s, got %s", i, v, cleaned[i])
		}
	}
}

func TestCleanup_ReactiveReplacement(t *testing.T) {
	scope := NewScope()

	cleaned := []string{}

	counter := Value(0)

	derived := Derive1(
		counter.Reactive(),
		func(ctx *ResolveCtx, counterCtrl *Controller[int]) (string, error) {
			count, _ := counterCtrl.Get()
			value := count
			ctx.OnCleanup(func() error {
				cleaned = append(cleaned, "derived-"+string(rune('0'+value)))
				return nil
			})
			return "value", nil
		},
	)

	_, err := Resolve(scope, derived)
	if err != nil {
		t.Fatalf("expected no error on first resolve: %v", err)
	}

	if len(cleaned) != 0 {
		t.Errorf("expected no cleanup yet, got %v", cleaned)
	}

	counterCtrl := Accessor(scope, counter)
	_ = counterCtrl.Update(context.Background(), 1)

	if len(cleaned) != 1 {
		t.Fatalf("expected 1 cleanup after update, got %d", len(cleaned))
	}

	if cleaned[0] != "derived-0" {
		t.Errorf("expected 'derived-0', got %s", cleaned[0])
	}

	_, err = Resolve(scope, derived)
	if err != nil {
		t.Fatalf("expected no error on re-resolve: %v", err)
	}

	_ = scope.Dispose()

	if len(cleaned) != 2 {
		t.Fatalf("expected 2 cleanups total, got %d", len(cleaned))
	}

	if cleaned[1] != "derived-1" {
		t.Errorf("expected second cleanup 'derived-1', got %s", cleaned[1])
	}
}

func TestCleanup_OnLastUnsubscribe(t *testing.T) {
	scope := NewScope()

	cancels := 0
	source := Provide(func(ctx *ResolveCtx) (string, error) {
		ctx.OnCleanup(func() error {
			cancels++
			return nil
		})
		return "source", nil
	})

	first := Subscribe(scope, source, func(string) {})
	second := Subscribe(scope, source, func(string) {})

	first()
	if cancels != 0 {
		t.Fatalf("expected no cleanup while a subscriber remains, got %d", cancels)
	}

	second()
	if cancels != 1 {
		t.Fatalf("expected cleanup after last unsubscribe, got %d", cancels)
	}
	if Accessor(scope, source).IsCached() {
		t.Error("expected value with cleanups to be dropped on deactivation")
	}

	_ = scope.Dispose()
	if cancels != 1 {
		t.Errorf("expected cleanup to run once, got %d", cancels)
	}
}

type cleanupRecorder struct {
	BaseExtension
	errs []*CleanupError
}

func (r *cleanupRecorder) OnCleanupError(err *CleanupError) bool {
	r.errs = append(r.errs, err)
	return true
}

func TestCleanup_ErrorsGoToExtensions(t *testing.T) {
	recorder := &cleanupRecorder{BaseExtension: NewBaseExtension("recorder")}
	scope := NewScope(WithExtension(recorder))

	failure := errors.New("close failed")
	ran := false
	exec := Provide(func(ctx *ResolveCtx) (int, error) {
		ctx.OnCleanup(func() error {
			ran = true
			return nil
		})
		ctx.OnCleanup(func() error {
			return failure
		})
		return 1, nil
	}, WithName("conn"))

	if _, err := Resolve(scope, exec); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	_ = scope.Dispose()

	if !ran {
		t.Error("expected remaining cleanups to run after a failure")
	}
	if len(recorder.errs) != 1 {
		t.Fatalf("expected 1 cleanup error, got %d", len(recorder.errs))
	}
	cerr := recorder.errs[0]
	if !errors.Is(cerr, failure) {
		t.Errorf("expected %v, got %v", failure, cerr)
	}
	if cerr.Context != "dispose" {
		t.Errorf("expected dispose context, got %s", cerr.Context)
	}
	if ExecutorName(cerr.ExecutorID) != "conn" {
		t.Errorf("expected executor conn, got %s", ExecutorName(cerr.ExecutorID))
	}
}

func TestCleanup_Release(t *testing.T) {
	scope := NewScope()

	released := 0
	exec := Provide(func(ctx *ResolveCtx) (int, error) {
		ctx.OnCleanup(func() error {
			released++
			return nil
		})
		return 1, nil
	})

	ctrl := Accessor(scope, exec)
	if _, err := ctrl.Get(); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if err := ctrl.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if released != 1 {
		t.Errorf("expected release to run the cleanup, got %d", released)
	}

	_ = scope.Dispose()
	if released != 1 {
		t.Errorf("expected cleanup to run once, got %d", released)
	}
}
