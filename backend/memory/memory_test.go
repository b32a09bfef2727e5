package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/unkn0wn-root/castore/backend"
)

func TestCASCreateOnlyWhenAbsent(t *testing.T) {
	ctx := context.Background()
	s := New()

	ok, err := s.CAS(ctx, "k", []byte("a"), 0)
	if err != nil || !ok {
		t.Fatalf("create: ok=%v err=%v", ok, err)
	}
	// second create with index 0 must lose
	if ok, _ := s.CAS(ctx, "k", []byte("b"), 0); ok {
		t.Fatalf("CAS(0) succeeded on existing key")
	}
	e, _ := s.Get(ctx, "k")
	if string(e.Value) != "a" {
		t.Fatalf("value changed by failed CAS: %q", e.Value)
	}

	if ok, _ := s.CAS(ctx, "k", []byte("c"), e.ModIndex); !ok {
		t.Fatalf("CAS with current index failed")
	}
	e2, _ := s.Get(ctx, "k")
	if e2.ModIndex <= e.ModIndex || string(e2.Value) != "c" {
		t.Fatalf("after CAS: %+v (prev mod %d)", e2, e.ModIndex)
	}
}

func TestGetMissing(t *testing.T) {
	e, err := New().Get(context.Background(), "nope")
	if err != nil || e != nil {
		t.Fatalf("Get missing: %+v %v", e, err)
	}
}

func TestTxnAndListing(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.Txn(ctx, []backend.Op{
		backend.Set("p/a/1", []byte("x")),
		backend.Set("p/a/2", []byte("y")),
		backend.Set("p/b/1", []byte("z")),
		backend.Set("q/a/1", []byte("w")),
		backend.Delete("p/a/2"),
	})
	if err != nil {
		t.Fatal(err)
	}
	keys, _ := s.Keys(ctx, "p/")
	if fmt.Sprint(keys) != "[p/a/1 p/b/1]" {
		t.Fatalf("Keys = %v", keys)
	}
	list, _ := s.List(ctx, "p/a")
	if len(list) != 1 || list[0].Key != "p/a/1" || string(list[0].Value) != "x" {
		t.Fatalf("List = %+v", list)
	}
	empty, err := s.Keys(ctx, "zzz")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("empty Keys = %#v %v", empty, err)
	}
}

func TestTxnRejectsOversizedBatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	ops := make([]backend.Op, backend.MaxTxnOps+1)
	for i := range ops {
		ops[i] = backend.Set(fmt.Sprintf("k%d", i), nil)
	}
	if err := s.Txn(ctx, ops); !errors.Is(err, backend.ErrTooManyOps) {
		t.Fatalf("want ErrTooManyOps, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("rejected txn applied %d keys", s.Len())
	}
}

func TestValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()
	in := []byte("abc")
	_ = s.Txn(ctx, []backend.Op{backend.Set("k", in)})
	in[0] = 'X'
	e, _ := s.Get(ctx, "k")
	e.Value[1] = 'Y'
	again, _ := s.Get(ctx, "k")
	if string(again.Value) != "abc" {
		t.Fatalf("stored value aliased caller memory: %q", again.Value)
	}
}
