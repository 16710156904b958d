package poller

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPoller_RunsImmediatelyAndOnTicks(t *testing.T) {
	var runs atomic.Int32
	p := New("test", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	cancel()
	<-done

	if got := runs.Load(); got < 3 {
		t.Errorf("expected at least 3 runs (immediate plus ticks), got %d", got)
	}
}

func TestPoller_ErrorsDoNotStopTheLoop(t *testing.T) {
	var runs atomic.Int32
	p := New("failing", 5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return fmt.Errorf("boom")
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if got := runs.Load(); got < 2 {
		t.Errorf("expected the loop to keep running past errors, got %d runs", got)
	}
}

func TestPoller_StopsOnCancel(t *testing.T) {
	p := New("stop", time.Millisecond, func(ctx context.Context) error { return nil }, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}
