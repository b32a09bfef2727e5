package kind

import (
	"github.com/unkn0wn-root/castore"
	"github.com/unkn0wn-root/castore/codec"
)

// Doc is the part of a JSON item the store needs. Other fields in the
// payload are ignored on read and kept as-is when stored through Raw.
type Doc struct {
	Key     string `json:"key"`
	Version int    `json:"version"`
	Deleted bool   `json:"deleted,omitempty"`
}

func (d Doc) GetVersion() int { return d.Version }
func (d Doc) IsDeleted() bool  { return d.Deleted }

// JSON is a kind for opaque JSON items that carry "version" and "deleted"
// fields, the format feature flags and segments are stored in.
func JSON(name string) *Kind[Doc] {
	return New(name, codec.JSON[Doc]{}, func(key string, version int) Doc {
		return Doc{Key: key, Version: version, Deleted: true}
	})
}

// Raw wraps already serialized bytes, taking version and deletion state
// from the kind.
func Raw(k castore.DataKind, data []byte) (castore.SerializedItem, error) {
	m, err := k.Meta(data)
	if err != nil {
		return castore.SerializedItem{}, err
	}
	return castore.SerializedItem{Version: m.Version, Deleted: m.Deleted, Data: data}, nil
}
