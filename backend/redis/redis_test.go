package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/castore/backend"
)

func newTestBackend(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	b, err := New(Config{Client: rdb, Namespace: "test", CloseClient: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b, mr
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("want ErrNilClient, got %v", err)
	}
}

func TestGetMissAndCASFlow(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	if e, err := b.Get(ctx, "p/f/x"); err != nil || e != nil {
		t.Fatalf("miss expected, got %+v %v", e, err)
	}

	ok, err := b.CAS(ctx, "p/f/x", []byte("v1"), 0)
	if err != nil || !ok {
		t.Fatalf("create CAS: ok=%v err=%v", ok, err)
	}
	e, err := b.Get(ctx, "p/f/x")
	if err != nil || e == nil || string(e.Value) != "v1" || e.ModIndex == 0 {
		t.Fatalf("Get after create: %+v %v", e, err)
	}

	// stale index loses
	if ok, err := b.CAS(ctx, "p/f/x", []byte("v2"), e.ModIndex+100); err != nil || ok {
		t.Fatalf("stale CAS: ok=%v err=%v", ok, err)
	}
	// create-only loses on existing key
	if ok, _ := b.CAS(ctx, "p/f/x", []byte("v2"), 0); ok {
		t.Fatalf("CAS(0) won on existing key")
	}
	if ok, _ := b.CAS(ctx, "p/f/x", []byte("v3"), e.ModIndex); !ok {
		t.Fatalf("CAS with current index lost")
	}
	e2, _ := b.Get(ctx, "p/f/x")
	if string(e2.Value) != "v3" || e2.ModIndex <= e.ModIndex {
		t.Fatalf("after CAS: %+v", e2)
	}
}

func TestTxnListAndKeys(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	err := b.Txn(ctx, []backend.Op{
		backend.Set("p/features/a", []byte(`{"version":1}`)),
		backend.Set("p/features/b", []byte(`{"version":2}`)),
		backend.Set("p/segments/s", []byte(`{"version":3}`)),
		backend.Set("p/$inited", nil),
		backend.Set("other/features/z", []byte("z")),
	})
	if err != nil {
		t.Fatalf("Txn: %v", err)
	}

	keys, err := b.Keys(ctx, "p/")
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(keys) != "[p/$inited p/features/a p/features/b p/segments/s]" {
		t.Fatalf("Keys = %v", keys)
	}

	list, err := b.List(ctx, "p/features")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Key != "p/features/a" || string(list[1].Value) != `{"version":2}` {
		t.Fatalf("List = %+v", list)
	}

	marker, err := b.Get(ctx, "p/$inited")
	if err != nil || marker == nil || len(marker.Value) != 0 {
		t.Fatalf("marker = %+v %v", marker, err)
	}

	if err := b.Txn(ctx, []backend.Op{backend.Delete("p/features/a")}); err != nil {
		t.Fatal(err)
	}
	if e, _ := b.Get(ctx, "p/features/a"); e != nil {
		t.Fatalf("deleted key still present: %+v", e)
	}
	keys, _ = b.Keys(ctx, "p/features")
	if fmt.Sprint(keys) != "[p/features/b]" {
		t.Fatalf("index not updated on delete: %v", keys)
	}

	none, err := b.Keys(ctx, "nothing/")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("empty Keys = %#v %v", none, err)
	}
}

func TestTxnRejectsOversizedBatch(t *testing.T) {
	b, _ := newTestBackend(t)
	ops := make([]backend.Op, backend.MaxTxnOps+1)
	for i := range ops {
		ops[i] = backend.Set(fmt.Sprintf("k%d", i), nil)
	}
	if err := b.Txn(context.Background(), ops); !errors.Is(err, backend.ErrTooManyOps) {
		t.Fatalf("want ErrTooManyOps, got %v", err)
	}
}

func TestServerErrorPropagates(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t)
	mr.SetError("LOADING server is loading")
	defer mr.SetError("")

	if _, err := b.Get(ctx, "k"); err == nil {
		t.Fatalf("Get should fail while server errors")
	}
	if _, err := b.CAS(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("CAS should fail while server errors")
	}
}
