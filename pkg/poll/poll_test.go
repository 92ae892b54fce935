package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPollerFetchesImmediatelyAndOnEveryTick(t *testing.T) {
	var fetches atomic.Int32
	var mu sync.Mutex
	var applied []int32

	p := New(10*time.Millisecond, func(context.Context) (int32, error) {
		return fetches.Add(1), nil
	}, func(n int32) {
		mu.Lock()
		applied = append(applied, n)
		mu.Unlock()
	})

	p.Start(context.Background())
	if !p.Running() {
		t.Fatal("poller should be running")
	}
	waitFor(t, func() bool { return fetches.Load() >= 3 })
	p.Stop()

	if p.Running() {
		t.Fatal("poller should be stopped")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(applied) < 3 || applied[0] != 1 {
		t.Fatalf("applied = %v", applied)
	}
	for i := 1; i < len(applied); i++ {
		if applied[i] <= applied[i-1] {
			t.Fatalf("results applied out of order: %v", applied)
		}
	}
}

func TestPollerKeepsGoingAfterErrors(t *testing.T) {
	var fetches atomic.Int32
	var applied atomic.Int32

	p := New(5*time.Millisecond, func(context.Context) (string, error) {
		if fetches.Add(1)%2 == 1 {
			return "", errors.New("offline")
		}
		return "ok", nil
	}, func(string) { applied.Add(1) }).Named("test")

	p.Start(context.Background())
	waitFor(t, func() bool { return applied.Load() >= 2 })
	p.Stop()
}

func TestStopDropsLateResponse(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var applied atomic.Int32

	p := New(time.Hour, func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 1, nil
	}, func(int) { applied.Add(1) })

	p.Start(context.Background())
	<-started

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	// Stop waits for the in-flight fetch, which ignores cancellation here
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.cancel == nil
	})
	close(release)
	<-stopped

	if applied.Load() != 0 {
		t.Fatal("a response landing after Stop must not be applied")
	}
}

func TestRestartSwitchesSource(t *testing.T) {
	var current atomic.Value
	current.Store("a")
	var mu sync.Mutex
	var seen []string

	p := New(5*time.Millisecond, func(context.Context) (string, error) {
		return current.Load().(string), nil
	}, func(s string) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	p.Start(context.Background())
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(seen) > 0 })

	current.Store("b")
	p.Start(context.Background())
	mu.Lock()
	mark := len(seen)
	mu.Unlock()
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(seen) > mark })
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	for _, s := range seen[mark:] {
		if s != "b" {
			t.Fatalf("stale result %q after restart: %v", s, seen)
		}
	}
}

func TestParentContextStopsPoller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(5*time.Millisecond, func(context.Context) (int, error) { return 0, nil }, func(int) {})

	p.Start(ctx)
	cancel()
	waitFor(t, func() bool { return !p.Running() })
	p.Stop()
}

func TestDefaultInterval(t *testing.T) {
	p := New(0, func(context.Context) (int, error) { return 0, nil }, func(int) {})
	if p.Interval() != DefaultInterval {
		t.Fatalf("Interval = %v, want %v", p.Interval(), DefaultInterval)
	}
	p.Stop()
}
