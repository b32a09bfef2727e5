// Package sloghooks reports castore.Hooks events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/castore"
)

type Options struct {
	// Sampling for high-volume events; 0/1 = log all.
	BatchEvery    uint64
	ConflictEvery uint64
	StaleEvery    uint64
	// Optional key redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	batchCtr    atomic.Uint64
	conflictCtr atomic.Uint64
	staleCtr    atomic.Uint64
}

var _ castore.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) BatchCommitted(prefix string, batch, batches, ops int) {
	if h.l == nil || !sample(h.opts.BatchEvery, &h.batchCtr) {
		return
	}
	h.l.Debug("castore.batch_committed",
		"prefix", prefix,
		"batch", batch,
		"batches", batches,
		"ops", ops)
}

func (h *Hooks) InitCompleted(prefix string, items, deleted, batches int) {
	if h.l == nil {
		return
	}
	h.l.Info("castore.init_completed",
		"prefix", prefix,
		"items", items,
		"deleted", deleted,
		"batches", batches)
}

func (h *Hooks) UpsertConflict(storageKey string, attempt int) {
	if h.l == nil || !sample(h.opts.ConflictEvery, &h.conflictCtr) {
		return
	}
	h.l.Debug("castore.upsert_conflict",
		"key", h.redact(storageKey),
		"attempt", attempt)
}

func (h *Hooks) UpsertStale(storageKey string, stored, incoming int) {
	if h.l == nil || !sample(h.opts.StaleEvery, &h.staleCtr) {
		return
	}
	h.l.Debug("castore.upsert_stale",
		"key", h.redact(storageKey),
		"stored", stored,
		"incoming", incoming)
}

func (h *Hooks) ProbeFailed(err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("castore.probe_failed", "err", err)
}
