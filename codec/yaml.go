package codec

import "gopkg.in/yaml.v3"

// YAML is a Codec backed by gopkg.in/yaml.v3. Like JSON it only handles
// text-safe values; use `yaml:"name"` tags to control field names.
type YAML[V any] struct{}

func (YAML[V]) Encode(v V) ([]byte, error) { return yaml.Marshal(v) }
func (YAML[V]) Decode(b []byte) (V, error) {
	var v V
	err := yaml.Unmarshal(b, &v)
	return v, err
}
