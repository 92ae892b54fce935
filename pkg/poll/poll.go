// Package poll re-fetches a resource on a fixed interval and hands each
// result to an apply function.
package poll

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultInterval matches the message polling cadence of the mobile clients.
const DefaultInterval = 3 * time.Second

// Poller fetches a T on a fixed interval and hands each result to apply.
// Results that arrive after Stop or a restart are dropped.
type Poller[T any] struct {
	name     string
	interval time.Duration
	fetch    func(context.Context) (T, error)
	apply    func(T)

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// New returns a stopped poller. apply runs on the poller goroutine and must
// not call back into the poller. A non-positive interval falls back to DefaultInterval.
func New[T any](interval time.Duration, fetch func(context.Context) (T, error), apply func(T)) *Poller[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller[T]{interval: interval, fetch: fetch, apply: apply}
}

// Named sets the label used in log lines.
func (p *Poller[T]) Named(name string) *Poller[T] {
	p.name = name
	return p
}

// Interval is the delay between fetches.
func (p *Poller[T]) Interval() time.Duration { return p.interval }

// Running reports whether a polling loop is active.
func (p *Poller[T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Start fetches once immediately and then once per tick until Stop or ctx
// is done. Starting a running poller restarts it.
func (p *Poller[T]) Start(ctx context.Context) {
	for {
		p.Stop()

		p.mu.Lock()
		if p.cancel == nil {
			p.generation++
			loopCtx, cancel := context.WithCancel(ctx)
			p.cancel = cancel
			p.done = make(chan struct{})
			go p.loop(loopCtx, p.generation, p.done)
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

// Stop cancels the loop and any fetch in flight, then waits for it to exit.
// A response that arrives after Stop is dropped.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.generation++
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller[T]) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	defer func() {
		p.mu.Lock()
		if p.generation == gen && p.cancel != nil {
			p.cancel()
			p.cancel, p.done = nil, nil
		}
		p.mu.Unlock()
	}()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.tick(ctx, gen)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller[T]) tick(ctx context.Context, gen uint64) {
	result, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("poll: fetch failed name=%s error=%v", p.name, err)
		}
		return
	}

	// The generation check and apply share the lock so Stop cannot slip in between.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen || ctx.Err() != nil {
		return
	}
	p.apply(result)
}
