// Package codec holds the serializers used for persisted cache artifacts and
// for converting hydrated values back into caller types.
package codec

// Codec turns a V into the bytes stored for it and back. Implementations
// are stateless or immutable after construction and safe to share.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
