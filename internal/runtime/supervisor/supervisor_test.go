package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRestartRecoversPanicWithoutCancel(t *testing.T) {
	t.Parallel()

	sup := New(context.Background(), WithCancelOnError(true))
	restarted := make(chan struct{})
	var runs atomic.Int32
	sup.GoRestart("loop", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			panic("boom in cycle")
		}
		close(restarted)
		<-ctx.Done()
		return ctx.Err()
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	select {
	case <-restarted:
	case <-time.After(2 * time.Second):
		t.Fatal("loop was not restarted after panic")
	}
	if err := sup.Context().Err(); err != nil {
		t.Fatalf("supervisor context canceled after loop panic: %v", err)
	}
	if err := sup.Err(); err != nil {
		t.Fatalf("panic recorded as fatal error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestGoRestartStopsOnCleanExit(t *testing.T) {
	t.Parallel()

	sup := New(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})
	sup.GoRestart("once", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			close(done)
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, time.Millisecond))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never ran")
	}
	time.Sleep(50 * time.Millisecond)
	if n := runs.Load(); n != 1 {
		t.Fatalf("runs = %d after clean exit, want 1", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestGoCancelsOnFirstError(t *testing.T) {
	t.Parallel()

	sup := New(context.Background(), WithCancelOnError(true))
	sup.Go("job", func(ctx context.Context) error {
		return errors.New("boom")
	})

	select {
	case <-sup.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after error")
	}
	err := sup.Err()
	if err == nil || err.Error() != "job: boom" {
		t.Fatalf("Err() = %v, want job: boom", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = sup.Wait(ctx)
}
