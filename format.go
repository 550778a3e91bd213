package memocache

import (
	"fmt"
	"strings"

	c "github.com/unkn0wn-root/memocache/codec"
	"github.com/unkn0wn-root/memocache/internal/wire"
)

// Format is the storage encoding of a persisted artifact. It is recorded as
// the system property storage_format the first time a name is registered.
type Format string

const (
	FormatJSON     Format = "json"     // text, .json
	FormatYAML     Format = "yaml"     // text, .yaml
	FormatMsgpack  Format = "msgpack"  // binary, .msgpack
	FormatCBOR     Format = "cbor"     // binary, .cbor
	FormatProtobuf Format = "protobuf" // binary google.protobuf.Struct, .pb
)

var formats = map[Format]struct {
	ext    string
	wireID byte // 0 => text, not framed
}{
	FormatJSON:     {ext: "json"},
	FormatYAML:     {ext: "yaml"},
	FormatMsgpack:  {ext: "msgpack", wireID: wire.FormatMsgpack},
	FormatCBOR:     {ext: "cbor", wireID: wire.FormatCBOR},
	FormatProtobuf: {ext: "pb", wireID: wire.FormatProtobuf},
}

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown storage format %q", s)
	}
	return f, nil
}

func (f Format) Valid() bool {
	_, ok := formats[f]
	return ok
}

// Ext is the artifact file extension without the dot.
func (f Format) Ext() string { return formats[f].ext }

// Binary reports whether artifacts are framed binary blobs rather than text.
func (f Format) Binary() bool { return formats[f].wireID != 0 }

func (f Format) String() string { return string(f) }

// Storage is the content of one artifact: CacheKey -> CacheEntry.
type Storage = map[string]any

// storageCodec returns the artifact codec for f. Binary formats are framed
// so a format drift is reported instead of decoding garbage.
func storageCodec(f Format, maxBytes int) (c.Codec[Storage], error) {
	var inner c.Codec[Storage]
	switch f {
	case FormatJSON:
		inner = c.JSON[Storage]{}
	case FormatYAML:
		inner = c.YAML[Storage]{}
	case FormatMsgpack:
		inner = c.Msgpack[Storage]{}
	case FormatCBOR:
		cb, err := c.NewCBOR[Storage](true)
		if err != nil {
			return nil, err
		}
		inner = cb
	case FormatProtobuf:
		inner = c.Struct{}
	default:
		return nil, fmt.Errorf("unknown storage format %q", f)
	}
	if id := formats[f].wireID; id != 0 {
		inner = framed{inner: inner, id: id}
	}
	return c.LimitCodec[Storage]{Inner: inner, MaxDecode: maxBytes}, nil
}

type framed struct {
	inner c.Codec[Storage]
	id    byte
}

func (f framed) Encode(s Storage) ([]byte, error) {
	b, err := f.inner.Encode(s)
	if err != nil {
		return nil, err
	}
	return wire.Encode(f.id, b), nil
}

func (f framed) Decode(b []byte) (Storage, error) {
	p, err := wire.Decode(f.id, b)
	if err != nil {
		return nil, err
	}
	return f.inner.Decode(p)
}

// valueCodec converts single values of type V under format f. Hydrated
// entries come back in generic shapes (map[string]any, json.Number ...);
// re-encoding them with the same format and decoding into V restores the
// caller's type.
func valueCodec[V any](f Format) (c.Codec[V], error) {
	switch f {
	case FormatJSON, FormatProtobuf:
		return c.JSON[V]{}, nil
	case FormatYAML:
		return c.YAML[V]{}, nil
	case FormatMsgpack:
		return c.Msgpack[V]{}, nil
	case FormatCBOR:
		return c.NewCBOR[V](false)
	default:
		return nil, fmt.Errorf("unknown storage format %q", f)
	}
}

func convertValue[V any](v any, f Format) (V, error) {
	var zero V
	enc, err := valueCodec[any](f)
	if err != nil {
		return zero, err
	}
	dec, err := valueCodec[V](f)
	if err != nil {
		return zero, err
	}
	b, err := enc.Encode(v)
	if err != nil {
		return zero, err
	}
	return dec.Decode(b)
}
