// Package keys maps (prefix, kind, key) triples onto flat backend keys.
//
//	<prefix>/<kind>/<key>  - one stored item
//	<prefix>/$inited       - marker written last by a successful Init
package keys

import "strings"

// InitedName is the marker segment. Kind names must never equal it.
const InitedName = "$inited"

const sep = "/"

// Root returns the listing root for everything owned by prefix.
// The trailing separator keeps "app" from matching "app2/...".
func Root(prefix string) string { return prefix + sep }

func Collection(prefix, kind string) string { return prefix + sep + kind }

// Members is the listing root for the items of one collection.
func Members(prefix, kind string) string { return Collection(prefix, kind) + sep }

func Item(prefix, kind, key string) string { return Collection(prefix, kind) + sep + key }

func Inited(prefix string) string { return prefix + sep + InitedName }

// ItemKeyOf recovers the item key from a stored key of the given collection.
// ok is false when storeKey does not belong to the collection.
func ItemKeyOf(prefix, kind, storeKey string) (key string, ok bool) {
	base := Members(prefix, kind)
	if !strings.HasPrefix(storeKey, base) {
		return "", false
	}
	return storeKey[len(base):], true
}
