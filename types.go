package castore

// ItemMeta is what a DataKind reads out of a serialized item.
type ItemMeta struct {
	Version int
	Deleted bool
}

// DataKind describes one collection, e.g. "features" or "segments".
// Name is used as a key segment: it must be non-empty, must not contain "/"
// and must not be "$inited".
type DataKind interface {
	Name() string
	// Meta decodes the version and deletion state of a serialized item.
	Meta(data []byte) (ItemMeta, error)
	// Placeholder returns the payload stored for a deleted item that has
	// no serialized form of its own.
	Placeholder(key string, version int) ([]byte, error)
}

// SerializedItem is an item in its stored form. Data may be nil for a
// deleted item; the kind's placeholder is written instead.
type SerializedItem struct {
	Version int
	Deleted bool
	Data    []byte
}

type KeyedItem struct {
	Key  string
	Item SerializedItem
}

type Collection struct {
	Kind  DataKind
	Items []KeyedItem
}

// FullDataSet is one complete snapshot. Order is preserved when writing.
type FullDataSet []Collection
