package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/unkn0wn-root/castore/backend"
)

type memEntry struct {
	v   []byte
	mod uint64
}

// Memory keeps entries in-process. Modification indexes come from a single
// store-wide counter, so they only ever grow, the way Consul's raft index does.
type Memory struct {
	mu   sync.RWMutex
	m    map[string]memEntry
	next uint64
}

var _ backend.Backend = (*Memory)(nil)

func New() *Memory {
	return &Memory{m: make(map[string]memEntry)}
}

func (s *Memory) Name() string { return "memory" }

func (s *Memory) Get(_ context.Context, key string) (*backend.Entry, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &backend.Entry{Key: key, Value: clone(e.v), ModIndex: e.mod}, nil
}

func (s *Memory) List(_ context.Context, prefix string) ([]backend.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backend.Entry, 0)
	for _, k := range s.sortedKeys(prefix) {
		e := s.m[k]
		out = append(out, backend.Entry{Key: k, Value: clone(e.v), ModIndex: e.mod})
	}
	return out, nil
}

func (s *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedKeys(prefix), nil
}

func (s *Memory) CAS(_ context.Context, key string, value []byte, modIndex uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m[key].mod != modIndex { // missing => 0
		return false, nil
	}
	s.put(key, value)
	return true, nil
}

func (s *Memory) Txn(_ context.Context, ops []backend.Op) error {
	if err := backend.CheckOps(ops); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		switch op.Verb {
		case backend.VerbSet:
			s.put(op.Key, op.Value)
		case backend.VerbDelete:
			delete(s.m, op.Key)
		}
	}
	return nil
}

func (s *Memory) Close(context.Context) error { return nil }

// Len reports the number of stored keys.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// caller holds s.mu for writing
func (s *Memory) put(key string, value []byte) {
	s.next++
	s.m[key] = memEntry{v: clone(value), mod: s.next}
}

// caller holds s.mu
func (s *Memory) sortedKeys(prefix string) []string {
	out := make([]string, 0)
	for k := range s.m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
