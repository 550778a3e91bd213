package codec

import (
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// CBOR is a Codec backed by fxamacker/cbor. Construct with NewCBOR or
// MustCBOR; the zero value has no modes and panics.
//
// Deterministic codecs use Core Deterministic Encoding (RFC 8949), so an
// artifact's bytes depend only on its content. Maps decoded into interface
// values come back as map[string]any, the shape every other codec accepts.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

type cborModes struct {
	det, fast cbor.EncMode
	dec       cbor.DecMode
}

// modes are immutable and shared by every CBOR codec.
var loadCBORModes = sync.OnceValues(func() (cborModes, error) {
	var m cborModes
	var err error

	det := cbor.CoreDetEncOptions()
	det.Time = cbor.TimeRFC3339Nano
	if m.det, err = det.EncMode(); err != nil {
		return m, err
	}
	fast := cbor.PreferredUnsortedEncOptions()
	fast.Time = cbor.TimeRFC3339Nano
	if m.fast, err = fast.EncMode(); err != nil {
		return m, err
	}
	m.dec, err = cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	return m, err
})

func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	m, err := loadCBORModes()
	if err != nil {
		return CBOR[V]{}, err
	}
	if deterministic {
		return CBOR[V]{enc: m.det, dec: m.dec}, nil
	}
	return CBOR[V]{enc: m.fast, dec: m.dec}, nil
}

// MustCBOR is like NewCBOR but panics on error.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
