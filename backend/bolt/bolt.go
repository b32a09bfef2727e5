// Package bolt is an embedded castore backend on top of bbolt. bbolt
// transactions are serializable, so CAS and Txn map onto a single
// read-write transaction each. Modification indexes come from the
// bucket sequence and every value is framed with wire.EncodeEntry.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/unkn0wn-root/castore/backend"
	"github.com/unkn0wn-root/castore/internal/wire"
)

const DefaultBucket = "castore"

var ErrNoPath = errors.New("bolt backend: path or DB is required")

type Config struct {
	Path    string        // database file; ignored when DB is set
	DB      *bolt.DB      // pre-opened database; not closed unless CloseDB
	Bucket  string        // "" => DefaultBucket
	Timeout time.Duration // file lock wait; 0 => 1s
	CloseDB bool
}

type Bolt struct {
	db      *bolt.DB
	bucket  []byte
	closeDB bool
	once    sync.Once
}

var _ backend.Backend = (*Bolt)(nil)

func Open(cfg Config) (*Bolt, error) {
	db := cfg.DB
	closeDB := cfg.CloseDB
	if db == nil {
		if cfg.Path == "" {
			return nil, ErrNoPath
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = time.Second
		}
		var err error
		db, err = bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: timeout})
		if err != nil {
			return nil, fmt.Errorf("bolt backend: open %s: %w", cfg.Path, err)
		}
		closeDB = true
	}
	name := cfg.Bucket
	if name == "" {
		name = DefaultBucket
	}
	b := &Bolt{db: db, bucket: []byte(name), closeDB: closeDB}
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	})
	if err != nil {
		if closeDB {
			_ = db.Close()
		}
		return nil, fmt.Errorf("bolt backend: create bucket: %w", err)
	}
	return b, nil
}

func (b *Bolt) Name() string { return "bolt" }

func (b *Bolt) Get(_ context.Context, key string) (*backend.Entry, error) {
	var out *backend.Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(b.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		e, err := decode(key, raw)
		if err != nil {
			return err
		}
		out = &e
		return nil
	})
	return out, err
}

func (b *Bolt) List(_ context.Context, prefix string) ([]backend.Entry, error) {
	out := make([]backend.Entry, 0)
	err := b.scan(prefix, func(k, raw []byte) error {
		e, err := decode(string(k), raw)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func (b *Bolt) Keys(_ context.Context, prefix string) ([]string, error) {
	out := make([]string, 0)
	err := b.scan(prefix, func(k, _ []byte) error {
		out = append(out, string(k))
		return nil
	})
	return out, err
}

func (b *Bolt) CAS(_ context.Context, key string, value []byte, modIndex uint64) (bool, error) {
	ok := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		var cur uint64
		if raw := bk.Get([]byte(key)); raw != nil {
			e, err := decode(key, raw)
			if err != nil {
				return err
			}
			cur = e.ModIndex
		}
		if cur != modIndex {
			return nil
		}
		if err := put(bk, key, value); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ok, err
}

func (b *Bolt) Txn(_ context.Context, ops []backend.Op) error {
	if err := backend.CheckOps(ops); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		for i, op := range ops {
			var err error
			switch op.Verb {
			case backend.VerbSet:
				err = put(bk, op.Key, op.Value)
			case backend.VerbDelete:
				err = bk.Delete([]byte(op.Key))
			}
			if err != nil {
				return &backend.TxnError{Reasons: map[int]string{i: err.Error()}}
			}
		}
		return nil
	})
}

// Close closes the database only when this backend opened or owns it.
func (b *Bolt) Close(context.Context) error {
	var err error
	b.once.Do(func() {
		if b.closeDB {
			err = b.db.Close()
		}
	})
	return err
}

func (b *Bolt) scan(prefix string, fn func(k, v []byte) error) error {
	p := []byte(prefix)
	return b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(b.bucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// caller is inside a read-write transaction
func put(bk *bolt.Bucket, key string, value []byte) error {
	seq, err := bk.NextSequence()
	if err != nil {
		return err
	}
	return bk.Put([]byte(key), wire.EncodeEntry(seq, value))
}

// decode copies the payload out; bbolt memory is only valid inside the transaction.
func decode(key string, raw []byte) (backend.Entry, error) {
	mod, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		return backend.Entry{}, fmt.Errorf("bolt backend: %q: %w", key, err)
	}
	return backend.Entry{Key: key, Value: append([]byte(nil), payload...), ModIndex: mod}, nil
}
