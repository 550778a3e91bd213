package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned by LimitCodec.Decode for oversized payloads.
var ErrTooLarge = errors.New("codec: payload too large")

// LimitCodec refuses to decode payloads longer than MaxDecode bytes, so a
// runaway artifact in a shared store (Redis written by another job, say)
// fails fast instead of being loaded whole. Encode is not limited.
// MaxDecode <= 0 disables the check.
type LimitCodec[V any] struct {
	Inner     Codec[V] // required
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
