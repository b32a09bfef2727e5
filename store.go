package castore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	bk "github.com/unkn0wn-root/castore/backend"
	"github.com/unkn0wn-root/castore/internal/keys"
)

var defaultEmptyListCodes = []int{404}

type store struct {
	b          bk.Backend
	prefix     string
	maxOps     int
	emptyCodes []int
	log        Logger
	hooks      Hooks

	closeOnce sync.Once
}

func newStore(opts Options) (*store, error) {
	if opts.Backend == nil {
		return nil, ErrNilBackend
	}
	if opts.MaxTxnOps < 0 {
		return nil, fmt.Errorf("castore: MaxTxnOps must not be negative, got %d", opts.MaxTxnOps)
	}

	s := &store{
		b:          opts.Backend,
		prefix:     coalesce(opts.Prefix, DefaultPrefix),
		maxOps:     min(coalesce(opts.MaxTxnOps, bk.MaxTxnOps), bk.MaxTxnOps),
		emptyCodes: opts.EmptyListCodes,
	}
	if s.emptyCodes == nil {
		s.emptyCodes = defaultEmptyListCodes
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	return s, nil
}

func (s *store) Describe() string { return s.b.Name() }

// Close closes the backend once; later calls return nil.
func (s *store) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() { err = s.b.Close(ctx) })
	return err
}

func (s *store) Get(ctx context.Context, kind DataKind, key string) (SerializedItem, bool, error) {
	if err := checkKind(kind); err != nil {
		return SerializedItem{}, false, err
	}
	sk := keys.Item(s.prefix, kind.Name(), key)
	e, err := s.b.Get(ctx, sk)
	if err != nil {
		return SerializedItem{}, false, &BackendError{Op: "get", Key: sk, Err: err}
	}
	if e == nil {
		return SerializedItem{}, false, nil
	}
	item, err := decode(kind, sk, e.Value)
	if err != nil {
		return SerializedItem{}, false, err
	}
	return item, true, nil
}

func (s *store) GetAll(ctx context.Context, kind DataKind) (map[string]SerializedItem, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	root := keys.Members(s.prefix, kind.Name())
	entries, err := s.b.List(ctx, root)
	if err != nil {
		return nil, &BackendError{Op: "getAll", Key: root, Err: err}
	}
	out := make(map[string]SerializedItem, len(entries))
	for _, e := range entries {
		key, ok := keys.ItemKeyOf(s.prefix, kind.Name(), e.Key)
		if !ok {
			continue
		}
		item, err := decode(kind, e.Key, e.Value)
		if err != nil {
			return nil, err
		}
		out[key] = item
	}
	return out, nil
}

func (s *store) IsInitialized(ctx context.Context) (bool, error) {
	mk := keys.Inited(s.prefix)
	e, err := s.b.Get(ctx, mk)
	if err != nil {
		return false, &BackendError{Op: "isInitialized", Key: mk, Err: err}
	}
	return e != nil, nil
}

func (s *store) IsAvailable(ctx context.Context) bool {
	if _, err := s.IsInitialized(ctx); err != nil {
		s.log.Warn("availability probe failed", Fields{"backend": s.b.Name(), "err": err})
		s.hooks.ProbeFailed(err)
		return false
	}
	return true
}

// Init writes data, deletes every other key under the prefix and sets the
// inited marker last. Existing keys are listed before anything is written;
// keeping that order is what lets a concurrent Upsert of a new key survive.
func (s *store) Init(ctx context.Context, data FullDataSet) error {
	for _, c := range data {
		if err := checkKind(c.Kind); err != nil {
			return err
		}
	}

	unused, err := s.existingKeys(ctx)
	if err != nil {
		return err
	}

	ops := make([]bk.Op, 0, len(unused)+1)
	items := 0
	for _, c := range data {
		name := c.Kind.Name()
		for _, it := range c.Items {
			sk := keys.Item(s.prefix, name, it.Key)
			v, err := payload(c.Kind, it.Key, it.Item)
			if err != nil {
				return fmt.Errorf("castore: init %s: %w", sk, err)
			}
			ops = append(ops, bk.Set(sk, v))
			delete(unused, sk)
			items++
		}
	}

	marker := keys.Inited(s.prefix)
	stale := make([]string, 0, len(unused))
	for k := range unused {
		if k != marker {
			stale = append(stale, k)
		}
	}
	sort.Strings(stale)
	for _, k := range stale {
		ops = append(ops, bk.Delete(k))
	}
	ops = append(ops, bk.Set(marker, []byte{}))

	batches, err := s.commit(ctx, ops)
	if err != nil {
		return err
	}

	s.log.Info("initialized store", Fields{"prefix": s.prefix, "items": items, "deleted": len(stale), "batches": batches})
	s.hooks.InitCompleted(s.prefix, items, len(stale), batches)
	return nil
}

// existingKeys snapshots every key under the prefix. Some services answer
// an empty listing with a not-found status; that counts as empty.
func (s *store) existingKeys(ctx context.Context) (map[string]struct{}, error) {
	root := keys.Root(s.prefix)
	ks, err := s.b.Keys(ctx, root)
	if err != nil {
		if !bk.HasStatus(err, s.emptyCodes...) {
			return nil, &BackendError{Op: "init", Key: root, Err: err}
		}
		ks = nil
	}
	set := make(map[string]struct{}, len(ks))
	for _, k := range ks {
		set[k] = struct{}{}
	}
	return set, nil
}

// commit submits ops in order, maxOps per transaction. It stops at the
// first failed batch; earlier batches stay applied.
func (s *store) commit(ctx context.Context, ops []bk.Op) (int, error) {
	batches := (len(ops) + s.maxOps - 1) / s.maxOps
	for i := 0; i < batches; i++ {
		lo := i * s.maxOps
		hi := min(lo+s.maxOps, len(ops))
		if err := s.b.Txn(ctx, ops[lo:hi]); err != nil {
			return i, &TransactionError{Batch: i + 1, Batches: batches, Ops: hi - lo, Err: err}
		}
		s.log.Debug("init batch committed", Fields{"batch": i + 1, "batches": batches, "ops": hi - lo})
		s.hooks.BatchCommitted(s.prefix, i+1, batches, hi-lo)
	}
	return batches, nil
}

// Upsert retries until it either sees a stored version >= item.Version or
// wins the conditioned write. Only a lost CAS retries; backend errors return.
func (s *store) Upsert(ctx context.Context, kind DataKind, key string, item SerializedItem) (bool, error) {
	if err := checkKind(kind); err != nil {
		return false, err
	}
	sk := keys.Item(s.prefix, kind.Name(), key)
	v, err := payload(kind, key, item)
	if err != nil {
		return false, fmt.Errorf("castore: upsert %s: %w", sk, err)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		cur, err := s.b.Get(ctx, sk)
		if err != nil {
			return false, &BackendError{Op: "upsert", Key: sk, Err: err}
		}

		var modIndex uint64 // 0 => must still be absent
		if cur != nil {
			old, err := kind.Meta(cur.Value)
			if err != nil {
				return false, corrupt(sk, err)
			}
			if old.Version >= item.Version {
				s.log.Debug("upsert skipped (stale version)", Fields{"key": sk, "stored": old.Version, "incoming": item.Version})
				s.hooks.UpsertStale(sk, old.Version, item.Version)
				return false, nil
			}
			modIndex = cur.ModIndex
		}

		ok, err := s.b.CAS(ctx, sk, v, modIndex)
		if err != nil {
			return false, &BackendError{Op: "upsert", Key: sk, Err: err}
		}
		if ok {
			return true, nil
		}

		s.log.Debug("concurrent modification detected, retrying", Fields{"key": sk, "attempt": attempt})
		s.hooks.UpsertConflict(sk, attempt)
	}
}

func checkKind(kind DataKind) error {
	if kind == nil {
		return fmt.Errorf("%w: nil", ErrInvalidKind)
	}
	name := kind.Name()
	if name == "" || name == keys.InitedName || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKind, name)
	}
	return nil
}

func decode(kind DataKind, storageKey string, data []byte) (SerializedItem, error) {
	m, err := kind.Meta(data)
	if err != nil {
		return SerializedItem{}, corrupt(storageKey, err)
	}
	return SerializedItem{Version: m.Version, Deleted: m.Deleted, Data: data}, nil
}

// payload is what gets stored: the item's own bytes or, for a deleted item
// without any, the kind's placeholder.
func payload(kind DataKind, key string, item SerializedItem) ([]byte, error) {
	if item.Data != nil {
		return item.Data, nil
	}
	return kind.Placeholder(key, item.Version)
}
