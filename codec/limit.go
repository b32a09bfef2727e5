package codec

import "fmt"

// ConsulMaxValue is the largest value a Consul KV entry accepts by default.
const ConsulMaxValue = 512 * 1024

// Limit wraps a codec and rejects payloads longer than Max in both
// directions, so an oversized item fails before it reaches the backend
// (where it would abort a whole Init batch). Max <= 0 disables the check.
type Limit[V any] struct {
	Inner Codec[V]
	Max   int
}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if err := c.check(len(b)); err != nil {
		return nil, err
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if err := c.check(len(b)); err != nil {
		var zero V
		return zero, err
	}
	return c.Inner.Decode(b)
}

func (c Limit[V]) check(n int) error {
	if c.Max > 0 && n > c.Max {
		return fmt.Errorf("%w: %d > %d", ErrTooLarge, n, c.Max)
	}
	return nil
}
