package sys

import (
	"context"
	"testing"
	"time"
)

func withShutdownHooks(t *testing.T, hooks ...func()) {
	t.Helper()
	activeShutdownMu.Lock()
	prev := activeShutdownHooks
	activeShutdownHooks = hooks
	activeShutdownMu.Unlock()
	t.Cleanup(func() {
		activeShutdownMu.Lock()
		activeShutdownHooks = prev
		activeShutdownMu.Unlock()
	})
}

func TestShutdownDaemonsRunsHooks(t *testing.T) {
	ran := make(chan struct{}, 2)
	withShutdownHooks(t,
		func() { ran <- struct{}{} },
		func() { ran <- struct{}{} },
	)

	ShutdownDaemons(context.Background())

	if len(ran) != 2 {
		t.Errorf("ShutdownDaemons ran %d hook(s), want 2", len(ran))
	}
}

func TestShutdownDaemonsHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	withShutdownHooks(t, func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		ShutdownDaemons(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ShutdownDaemons did not return after the context deadline")
	}
}
