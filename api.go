package castore

import (
	"context"

	bk "github.com/unkn0wn-root/castore/backend"
)

// DefaultPrefix keeps the key layout of existing deployments readable.
const DefaultPrefix = "launchdarkly"

// Store is the persistence API consumed by a caching layer.
type Store interface {
	// Get returns ok=false when the item does not exist.
	Get(ctx context.Context, kind DataKind, key string) (item SerializedItem, ok bool, err error)
	// GetAll returns every stored item of kind, deleted placeholders included.
	GetAll(ctx context.Context, kind DataKind) (map[string]SerializedItem, error)

	// Init replaces everything under the prefix with data.
	Init(ctx context.Context, data FullDataSet) error
	// Upsert writes item unless the stored version is the same or newer.
	Upsert(ctx context.Context, kind DataKind, key string, item SerializedItem) (applied bool, err error)

	IsInitialized(ctx context.Context) (bool, error)
	// IsAvailable never fails; any error means false.
	IsAvailable(ctx context.Context) bool

	// Describe names the backend, e.g. "consul".
	Describe() string
	Close(context.Context) error
}

// Options tune the store. Only Backend is required.
type Options struct {
	Backend bk.Backend

	Prefix    string // "" => DefaultPrefix
	MaxTxnOps int    // 0 => backend.MaxTxnOps; larger values are clamped
	// Status codes meaning "nothing found" when Init lists existing keys.
	// nil => {404}, what Consul answers for an empty prefix.
	EmptyListCodes []int

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

func New(opts Options) (Store, error) {
	return newStore(opts)
}
