package memocache

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"

	"github.com/unkn0wn-root/memocache/internal/util"
)

// CanonicalName strips IntrinsicSuffix.
func CanonicalName(name string) string {
	return strings.TrimSuffix(name, IntrinsicSuffix)
}

// Key derives the cache key of one call.
//
// A struct (or pointer to struct) argument is a set of named arguments: one
// per exported field, named by its json tag or field name. Fields of
// untagged embedded structs are promoted the way encoding/json promotes
// them. Fields tagged
// `json:"-"` or listed in exclude (by either name) do not take part. Any
// other argument is a single positional argument and keys as `[arg]`.
//
// The result is canonical JSON: object keys are sorted at every depth, so
// equal arguments give equal keys across runs. With hash set the canonical
// form is replaced by its 16 hex char xxhash64 digest.
func Key(args any, exclude []string, hash bool) (string, error) {
	b, err := canonicalJSON(keyBearing(args, exclude))
	if err != nil {
		return "", err
	}
	if hash {
		return util.HashKey(string(b)), nil
	}
	return string(b), nil
}

func keyBearing(args any, exclude []string) any {
	rv := reflect.ValueOf(args)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return []any{nil}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return []any{args}
	}

	byName := make(map[string][]keyField)
	collectFields(rv, exclude, 0, byName)
	out := make(map[string]any, len(byName))
	for name, fs := range byName {
		if f, ok := dominantField(fs); ok {
			out[name] = f.v.Interface()
		}
	}
	return out
}

type keyField struct {
	v      reflect.Value
	depth  int
	tagged bool
}

// collectFields gathers the fields encoding/json would marshal, with fields
// of untagged embedded structs promoted into the parent.
func collectFields(rv reflect.Value, exclude []string, depth int, into map[string][]keyField) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tagName, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tagName == "-" {
			continue
		}
		if f.Anonymous {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if tagName == "" && ft.Kind() == reflect.Struct {
				if excluded(exclude, f.Name) {
					continue
				}
				fv := rv.Field(i)
				if fv.Kind() == reflect.Pointer {
					if fv.IsNil() {
						continue
					}
					fv = fv.Elem()
				}
				collectFields(fv, exclude, depth+1, into)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tagName != "" {
			name = tagName
		}
		if excluded(exclude, f.Name, name) {
			continue
		}
		into[name] = append(into[name], keyField{v: rv.Field(i), depth: depth, tagged: tagName != ""})
	}
}

// dominantField applies encoding/json's rule: the shallowest field wins, a
// tagged field breaks a tie, and an unresolved tie drops the name.
func dominantField(fs []keyField) (keyField, bool) {
	depth := fs[0].depth
	for _, f := range fs[1:] {
		depth = min(depth, f.depth)
	}
	var top []keyField
	for _, f := range fs {
		if f.depth == depth {
			top = append(top, f)
		}
	}
	if len(top) == 1 {
		return top[0], true
	}
	var tagged []keyField
	for _, f := range top {
		if f.tagged {
			tagged = append(tagged, f)
		}
	}
	if len(tagged) == 1 {
		return tagged[0], true
	}
	return keyField{}, false
}

func excluded(exclude []string, names ...string) bool {
	for _, e := range exclude {
		for _, n := range names {
			if e == n {
				return true
			}
		}
	}
	return false
}

// canonicalJSON marshals v, decodes it generically and marshals again;
// encoding/json writes map keys sorted, so struct field order stops
// mattering. Numbers are kept verbatim.
func canonicalJSON(v any) ([]byte, error) {
	first, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(first))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// KeyFromJSON derives a key from a JSON argument document, as tooling sees
// arguments: an object is a set of named arguments (exclude drops names),
// anything else is one positional argument. A function whose argument is
// itself a map keys it positionally; pass such an argument with positional
// set and the document is keyed as `[doc]`.
func KeyFromJSON(doc []byte, exclude []string, positional, hash bool) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", errors.New("trailing data after JSON document")
	}
	if obj, ok := v.(map[string]any); ok && !positional {
		for _, e := range exclude {
			delete(obj, e)
		}
	} else {
		v = []any{v}
	}
	b, err := canonicalJSON(v)
	if err != nil {
		return "", err
	}
	if hash {
		return util.HashKey(string(b)), nil
	}
	return string(b), nil
}
