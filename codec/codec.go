// Package codec turns typed items into the payload bytes a DataKind stores.
package codec

import "errors"

// Codec encodes and decodes item values.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ErrTooLarge is returned by Limit when a payload exceeds its bound.
var ErrTooLarge = errors.New("codec: payload too large")
