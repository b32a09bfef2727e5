package castore

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The store calls them inline on Init and Upsert.
type Hooks interface {
	// One Init transaction committed. batch is 1-based.
	BatchCommitted(prefix string, batch, batches, ops int)

	// Init finished: items written, stale keys deleted, transactions used.
	InitCompleted(prefix string, items, deleted, batches int)

	// A conditioned write lost against a concurrent writer; Upsert reads again.
	// attempt counts from 1.
	UpsertConflict(storageKey string, attempt int)

	// Upsert was a no-op because the stored version is the same or newer.
	UpsertStale(storageKey string, stored, incoming int)

	// IsAvailable swallowed err and reported false.
	ProbeFailed(err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) BatchCommitted(string, int, int, int) {}
func (NopHooks) InitCompleted(string, int, int, int)  {}
func (NopHooks) UpsertConflict(string, int)           {}
func (NopHooks) UpsertStale(string, int, int)         {}
func (NopHooks) ProbeFailed(error)                    {}
