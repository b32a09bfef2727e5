// Package castore persists a versioned, multi-collection data set in a
// key-value service that only offers per-key compare-and-set and small
// atomic transactions (Consul, Redis via Lua, bbolt).
//
// Components:
//   - Backend: flat byte store with per-key modification indexes
//     (see package backend and its consul, redis, bolt, memory adapters).
//   - DataKind: names a collection and reads version/deleted out of a
//     serialized item. Serialization itself belongs to the caller
//     (see packages kind and codec).
//   - Store: Get, GetAll, Init, Upsert, IsInitialized, IsAvailable.
//
// Keys:
//
//	<prefix>/<kind>/<key>  - one item per key
//	<prefix>/$inited       - written last by a successful Init
//
// Init replaces the whole data set in transactions of at most 64
// operations. It is not atomic: a concurrent Upsert may land between two
// batches. Existing keys are snapshotted before any write so only keys
// missing from the new data set are deleted.
//
// Upsert pattern:
//
//	cur := backend.Get(k)                      // value + modification index
//	if cur.version >= new.version { stale }    // equal versions are stale too
//	backend.CAS(k, new, cur.modIndex)          // lost the race? read again
package castore
