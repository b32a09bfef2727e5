package asynchook

import (
	"errors"
	"sync"
	"testing"

	"github.com/unkn0wn-root/castore"
)

type countHooks struct {
	castore.NopHooks
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (c *countHooks) add(ev string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *countHooks) BatchCommitted(string, int, int, int) { c.add("batch") }
func (c *countHooks) InitCompleted(string, int, int, int)  { c.add("init") }
func (c *countHooks) UpsertConflict(string, int)           { c.add("conflict") }
func (c *countHooks) UpsertStale(string, int, int)         { c.add("stale") }
func (c *countHooks) ProbeFailed(error)                    { c.add("probe") }

func TestForwardsEveryEvent(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 1, 16)
	h.BatchCommitted("p", 1, 1, 3)
	h.InitCompleted("p", 2, 0, 1)
	h.UpsertConflict("p/k/a", 1)
	h.UpsertStale("p/k/a", 2, 1)
	h.ProbeFailed(errors.New("down"))
	h.Close()

	want := []string{"batch", "init", "conflict", "stale", "probe"}
	if len(inner.events) != len(want) {
		t.Fatalf("events = %v", inner.events)
	}
	for i := range want {
		if inner.events[i] != want[i] {
			t.Fatalf("events = %v, want %v", inner.events, want)
		}
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped = %d", h.Dropped())
	}
	h.Close() // idempotent
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one event held by the worker, one queued, the rest dropped
	for i := 0; i < 10; i++ {
		h.UpsertConflict("k", i+1)
	}
	close(inner.block)
	h.Close()

	if got := len(inner.events) + int(h.Dropped()); got != 10 {
		t.Fatalf("delivered %d + dropped %d != 10", len(inner.events), h.Dropped())
	}
	if h.Dropped() < 8 {
		t.Fatalf("dropped = %d, want >= 8", h.Dropped())
	}
}
