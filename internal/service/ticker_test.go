package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/msomdec/focusvault/internal/service"
)

func TestTicker_ZeroIntervalIsManual(t *testing.T) {
	tk := service.NewTicker(0)
	var calls atomic.Int32
	tk.Run("s1", func(context.Context, int) { calls.Add(1) })

	if tk.Running("s1") {
		t.Fatal("manual ticker should not register loops")
	}
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("expected no ticks, got %d", calls.Load())
	}
	tk.Shutdown()
}

func TestTicker_RunAndStop(t *testing.T) {
	tk := service.NewTicker(time.Millisecond)
	defer tk.Shutdown()

	var calls atomic.Int32
	tk.Run("s1", func(context.Context, int) { calls.Add(1) })
	if !tk.Running("s1") {
		t.Fatal("expected loop to be registered")
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected ticks, got %d", calls.Load())
		}
		time.Sleep(time.Millisecond)
	}

	tk.Stop("s1")
	if tk.Running("s1") {
		t.Fatal("expected loop to be removed after Stop")
	}
}

func TestTicker_RunReplacesLoop(t *testing.T) {
	tk := service.NewTicker(time.Millisecond)

	var first, second atomic.Int32
	tk.Run("s1", func(context.Context, int) { first.Add(1) })
	tk.Run("s1", func(context.Context, int) { second.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for second.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("replacement loop never ticked")
		}
		time.Sleep(time.Millisecond)
	}
	tk.Shutdown()

	// After Shutdown returns no loop is still running.
	before := first.Load() + second.Load()
	time.Sleep(10 * time.Millisecond)
	if after := first.Load() + second.Load(); after != before {
		t.Fatalf("ticks after Shutdown: %d -> %d", before, after)
	}
}

func TestTicker_StopCancelsContext(t *testing.T) {
	tk := service.NewTicker(time.Millisecond)
	defer tk.Shutdown()

	ctxs := make(chan context.Context, 1)
	tk.Run("s1", func(ctx context.Context, _ int) {
		select {
		case ctxs <- ctx:
		default:
		}
	})

	var ctx context.Context
	select {
	case ctx = <-ctxs:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never ticked")
	}

	tk.Stop("s1")
	if ctx.Err() == nil {
		t.Fatal("expected the loop context to be cancelled")
	}
}

func TestTicker_CatchesUpAfterSlowTick(t *testing.T) {
	tk := service.NewTicker(2 * time.Millisecond)
	defer tk.Shutdown()

	var calls, maxSteps atomic.Int32
	tk.Run("s1", func(_ context.Context, steps int) {
		if calls.Add(1) == 1 {
			time.Sleep(20 * time.Millisecond)
		}
		if int32(steps) > maxSteps.Load() {
			maxSteps.Store(int32(steps))
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected ticks, got %d", calls.Load())
		}
		time.Sleep(time.Millisecond)
	}
	if maxSteps.Load() < 2 {
		t.Fatalf("expected the loop to make up missed ticks, max steps %d", maxSteps.Load())
	}
}
