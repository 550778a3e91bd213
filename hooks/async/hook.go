// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    HitEvery: 100, // sample logs: ~every 100th hit
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	reg, _ := memocache.New(ctx, memocache.Options{Hooks: hooks})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/memocache"
)

// Hooks forwards events to inner on worker goroutines. Events are dropped
// when the queue is full so the call path never blocks.
type Hooks struct {
	inner memocache.Hooks
	q     chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex // held for reading across sends; Close takes it to close q
	closed bool
}

var _ memocache.Hooks = (*Hooks)(nil)

func New(inner memocache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.q)
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) Hit(name, key string) { h.try(func() { h.inner.Hit(name, key) }) }
func (h *Hooks) Reset(name string)    { h.try(func() { h.inner.Reset(name) }) }
func (h *Hooks) Miss(name, key, reason string) {
	h.try(func() { h.inner.Miss(name, key, reason) })
}
func (h *Hooks) Hydrated(name string, n int) { h.try(func() { h.inner.Hydrated(name, n) }) }
func (h *Hooks) Flushed(name string, n int)  { h.try(func() { h.inner.Flushed(name, n) }) }
func (h *Hooks) PropertySet(scope memocache.Scope, name, key string, value any) {
	h.try(func() { h.inner.PropertySet(scope, name, key, value) })
}
