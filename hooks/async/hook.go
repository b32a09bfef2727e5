// Package asynchook moves castore.Hooks calls off the caller's goroutine.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{ConflictEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	store, _ := castore.New(castore.Options{Backend: b, Hooks: hooks})
//
// Events are dropped, not blocked on, when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/castore"
)

type Hooks struct {
	inner   castore.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ castore.Hooks = (*Hooks)(nil)

func New(inner castore.Hooks, workers, qlen int) *Hooks {
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

// Close drains queued events and stops the workers. Hooks must not be
// called after Close.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded on a full queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) BatchCommitted(p string, batch, batches, ops int) {
	h.try(func() { h.inner.BatchCommitted(p, batch, batches, ops) })
}
func (h *Hooks) InitCompleted(p string, items, deleted, batches int) {
	h.try(func() { h.inner.InitCompleted(p, items, deleted, batches) })
}
func (h *Hooks) UpsertConflict(k string, attempt int) {
	h.try(func() { h.inner.UpsertConflict(k, attempt) })
}
func (h *Hooks) UpsertStale(k string, stored, incoming int) {
	h.try(func() { h.inner.UpsertStale(k, stored, incoming) })
}
func (h *Hooks) ProbeFailed(err error) { h.try(func() { h.inner.ProbeFailed(err) }) }
