package codec

import (
	"bytes"
	"encoding/json"
)

// JSON is a Codec backed by encoding/json. Decoding keeps numbers as
// json.Number so integers survive a decode/encode round trip unchanged.
// The zero value is ready to use.
type JSON[V any] struct {
	// Indent pretty-prints the output with the given indent string.
	Indent string
}

func (c JSON[V]) Encode(v V) ([]byte, error) {
	if c.Indent != "" {
		return json.MarshalIndent(v, "", c.Indent)
	}
	return json.Marshal(v)
}

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	err := dec.Decode(&v)
	return v, err
}
