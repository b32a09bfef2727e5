// Package kind provides castore.DataKind implementations built on a codec.
package kind

import (
	"fmt"
	"sort"

	"github.com/unkn0wn-root/castore"
	"github.com/unkn0wn-root/castore/codec"
)

// Versioned is implemented by item types that carry their own version and
// deletion flag.
type Versioned interface {
	GetVersion() int
	IsDeleted() bool
}

// Kind is a DataKind whose items are values of V encoded with a codec.
type Kind[V any] struct {
	name    string
	codec   codec.Codec[V]
	meta    func(V) castore.ItemMeta
	deleted func(key string, version int) V
}

var _ castore.DataKind = (*Kind[Doc])(nil)

// New builds a kind for a Versioned item type. deleted produces the
// tombstone value stored for a deleted item that has no data.
func New[V Versioned](name string, c codec.Codec[V], deleted func(key string, version int) V) *Kind[V] {
	return NewWith(name, c, func(v V) castore.ItemMeta {
		return castore.ItemMeta{Version: v.GetVersion(), Deleted: v.IsDeleted()}
	}, deleted)
}

// NewWith builds a kind for any V, reading metadata through meta.
func NewWith[V any](name string, c codec.Codec[V], meta func(V) castore.ItemMeta, deleted func(key string, version int) V) *Kind[V] {
	return &Kind[V]{name: name, codec: c, meta: meta, deleted: deleted}
}

func (k *Kind[V]) Name() string { return k.name }

func (k *Kind[V]) Meta(data []byte) (castore.ItemMeta, error) {
	v, err := k.codec.Decode(data)
	if err != nil {
		return castore.ItemMeta{}, err
	}
	return k.meta(v), nil
}

func (k *Kind[V]) Placeholder(key string, version int) ([]byte, error) {
	if k.deleted == nil {
		return nil, fmt.Errorf("kind %s: no placeholder for deleted item %q", k.name, key)
	}
	return k.codec.Encode(k.deleted(key, version))
}

// Item encodes v into its stored form.
func (k *Kind[V]) Item(v V) (castore.SerializedItem, error) {
	b, err := k.codec.Encode(v)
	if err != nil {
		return castore.SerializedItem{}, err
	}
	m := k.meta(v)
	return castore.SerializedItem{Version: m.Version, Deleted: m.Deleted, Data: b}, nil
}

// Deleted is the stored form of a tombstone without data.
func (k *Kind[V]) Deleted(version int) castore.SerializedItem {
	return castore.SerializedItem{Version: version, Deleted: true}
}

// Decode returns the typed value of a stored item.
func (k *Kind[V]) Decode(it castore.SerializedItem) (V, error) {
	return k.codec.Decode(it.Data)
}

// Collection encodes items for Init, ordered by key.
func (k *Kind[V]) Collection(items map[string]V) (castore.Collection, error) {
	ks := make([]string, 0, len(items))
	for key := range items {
		ks = append(ks, key)
	}
	sort.Strings(ks)

	c := castore.Collection{Kind: k, Items: make([]castore.KeyedItem, 0, len(ks))}
	for _, key := range ks {
		it, err := k.Item(items[key])
		if err != nil {
			return castore.Collection{}, fmt.Errorf("kind %s: encode %q: %w", k.name, key, err)
		}
		c.Items = append(c.Items, castore.KeyedItem{Key: key, Item: it})
	}
	return c, nil
}
