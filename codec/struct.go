package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Struct encodes a string-keyed map as a binary google.protobuf.Struct.
// Values are stored in their JSON shape: structs become objects and numbers
// come back as float64.
type Struct struct{}

var _ Codec[map[string]any] = Struct{}

func (Struct) Encode(m map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(normalize(m))
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

func (Struct) Decode(b []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return s.AsMap(), nil
}

// normalize rewrites values structpb cannot take directly (json.Number,
// typed slices/maps produced by other codecs) into their plain forms.
func normalize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return normalize(vv)
	case map[any]any:
		m := make(map[string]any, len(vv))
		for k, e := range vv {
			m[fmt.Sprint(k)] = normalizeValue(e)
		}
		return m
	case []any:
		s := make([]any, len(vv))
		for i, e := range vv {
			s[i] = normalizeValue(e)
		}
		return s
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := vv.Float64()
		if err != nil {
			return v
		}
		return f
	case nil, bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	default:
		// structs and typed containers: take their JSON shape
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return v
		}
		return out
	}
}
