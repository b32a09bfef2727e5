package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRedactsKeys(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})
	h.UpsertConflict("app/flags/secret-customer", 2)

	out := buf.String()
	if strings.Contains(out, "secret-customer") {
		t.Fatalf("key leaked: %q", out)
	}
	if !strings.Contains(out, "castore.upsert_conflict") || !strings.Contains(out, "attempt=2") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCustomRedact(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{Redact: func(string) string { return "X" }})
	h.UpsertStale("app/flags/f", 3, 2)
	if !strings.Contains(buf.String(), "key=X stored=3 incoming=2") {
		t.Fatalf("got %q", buf.String())
	}
}

func TestSampling(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{BatchEvery: 3})
	for i := 1; i <= 9; i++ {
		h.BatchCommitted("app", i, 9, 64)
	}
	if n := strings.Count(buf.String(), "castore.batch_committed"); n != 3 {
		t.Fatalf("logged %d batches, want 3", n)
	}
}

func TestUnsampledEvents(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})
	h.InitCompleted("app", 10, 2, 1)
	h.ProbeFailed(errors.New("connection refused"))
	out := buf.String()
	for _, want := range []string{
		"castore.init_completed prefix=app items=10 deleted=2 batches=1",
		`castore.probe_failed err="connection refused"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.BatchCommitted("p", 1, 1, 1)
	h.InitCompleted("p", 0, 0, 1)
	h.UpsertConflict("k", 1)
	h.UpsertStale("k", 1, 1)
	h.ProbeFailed(errors.New("x"))
}
