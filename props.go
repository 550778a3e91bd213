package memocache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	c "github.com/unkn0wn-root/memocache/codec"
	pr "github.com/unkn0wn-root/memocache/provider"
)

var allowedProps = map[Scope]map[string]bool{
	ScopeSystem: {PropStorageFormat: true},
	ScopeUser: {
		PropForceRefresh:     true,
		PropAbortOnCacheMiss: true,
		PropReportOnMiss:     true,
		PropEnablePerf:       true,
	},
}

var errFormatReadOnly = errors.New("storage_format is read-only once set")

// propertyStore keeps both property scopes in memory and rewrites a scope's
// whole artifact on every mutation.
type propertyStore struct {
	provider pr.Provider
	format   Format
	codec    c.Codec[Storage]
	log      Logger
	scopes   map[Scope]map[string]map[string]any
}

func newPropertyStore(ctx context.Context, p pr.Provider, f Format, maxBytes int, log Logger) (*propertyStore, error) {
	cd, err := storageCodec(f, maxBytes)
	if err != nil {
		return nil, &ConfigurationError{Op: "property format", Err: err}
	}
	s := &propertyStore{
		provider: p,
		format:   f,
		codec:    cd,
		log:      log,
		scopes:   make(map[Scope]map[string]map[string]any, 2),
	}
	for _, scope := range []Scope{ScopeSystem, ScopeUser} {
		recs, err := s.load(ctx, scope)
		if err != nil {
			return nil, err
		}
		s.scopes[scope] = recs
	}
	return s, nil
}

func (s *propertyStore) artifact(scope Scope) string {
	return "cache_property." + string(scope) + "." + s.format.Ext()
}

func (s *propertyStore) load(ctx context.Context, scope Scope) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any)
	raw, ok, err := s.provider.Get(ctx, s.artifact(scope))
	if err != nil {
		return nil, fmt.Errorf("memocache: read %s: %w", s.artifact(scope), err)
	}
	if !ok {
		return out, nil
	}
	data, err := s.codec.Decode(raw)
	if err != nil {
		return nil, &EncodingError{Name: s.artifact(scope), Format: s.format, Op: "decode", Err: err}
	}
	for name, v := range data {
		rec, ok := v.(map[string]any)
		if !ok {
			return nil, &EncodingError{
				Name:   s.artifact(scope),
				Format: s.format,
				Op:     "decode",
				Err:    fmt.Errorf("record %q is %T, want a mapping", name, v),
			}
		}
		out[name] = rec
	}
	s.log.Debug("loaded properties", Fields{"scope": scope, "names": len(out)})
	return out, nil
}

func (s *propertyStore) save(ctx context.Context, scope Scope) error {
	data := make(Storage, len(s.scopes[scope]))
	for name, rec := range s.scopes[scope] {
		data[name] = rec
	}
	b, err := s.codec.Encode(data)
	if err != nil {
		return &EncodingError{Name: s.artifact(scope), Format: s.format, Op: "encode", Err: err}
	}
	if err := s.provider.Set(ctx, s.artifact(scope), b); err != nil {
		return fmt.Errorf("memocache: write %s: %w", s.artifact(scope), err)
	}
	return nil
}

func checkScope(scope Scope) error {
	if _, ok := allowedProps[scope]; !ok {
		return &ConfigurationError{Op: "scope", Err: fmt.Errorf("unknown property scope %q", scope)}
	}
	return nil
}

// get returns the stored value; ok is false when the property was never set.
func (s *propertyStore) get(scope Scope, name, key string) (any, bool, error) {
	if err := checkScope(scope); err != nil {
		return nil, false, err
	}
	if !allowedProps[scope][key] {
		return nil, false, &InvalidPropertyError{Scope: scope, Key: key}
	}
	v, ok := s.scopes[scope][name][key]
	return v, ok, nil
}

// flag reads a user toggle; absent or non-bool means false.
func (s *propertyStore) flag(name, key string) bool {
	b, _ := s.scopes[ScopeUser][name][key].(bool)
	return b
}

func (s *propertyStore) storageFormat(name string) (Format, bool) {
	v, ok := s.scopes[ScopeSystem][name][PropStorageFormat]
	if !ok {
		return "", false
	}
	str, _ := v.(string)
	f, err := ParseFormat(str)
	if err != nil {
		return "", false
	}
	return f, true
}

func (s *propertyStore) set(ctx context.Context, scope Scope, name, key string, value any) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	if !allowedProps[scope][key] {
		return &InvalidPropertyError{Scope: scope, Key: key}
	}
	if name == "" {
		return &ConfigurationError{Op: "set property", Err: errors.New("empty cache name")}
	}

	var normalized any
	switch scope {
	case ScopeSystem:
		f, err := formatValue(value)
		if err != nil {
			return &ConfigurationError{Op: "set " + key, Name: name, Err: err}
		}
		if cur, ok := s.storageFormat(name); ok {
			if cur == f {
				return nil
			}
			return &ConfigurationError{
				Op:   "set " + key,
				Name: name,
				Err:  fmt.Errorf("%w (have %s, got %s)", errFormatReadOnly, cur, f),
			}
		}
		normalized = string(f)
	case ScopeUser:
		b, ok := value.(bool)
		if !ok {
			return &ConfigurationError{Op: "set " + key, Name: name, Err: fmt.Errorf("want bool, got %T", value)}
		}
		normalized = b
	}

	rec := s.scopes[scope][name]
	if rec == nil {
		rec = make(map[string]any, 1)
		s.scopes[scope][name] = rec
	}
	prev, had := rec[key]
	rec[key] = normalized
	if err := s.save(ctx, scope); err != nil {
		// keep memory consistent with what is on disk
		if had {
			rec[key] = prev
		} else {
			delete(rec, key)
		}
		return err
	}
	s.log.Debug("property set", Fields{"scope": scope, "name": name, "key": key, "value": normalized})
	return nil
}

func formatValue(v any) (Format, error) {
	switch vv := v.(type) {
	case Format:
		return ParseFormat(string(vv))
	case string:
		return ParseFormat(vv)
	default:
		return "", fmt.Errorf("storage format must be a string, got %T", v)
	}
}

func (s *propertyStore) reset(ctx context.Context, scope Scope) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	prev := s.scopes[scope]
	s.scopes[scope] = make(map[string]map[string]any)
	if err := s.save(ctx, scope); err != nil {
		s.scopes[scope] = prev
		return err
	}
	s.log.Debug("properties reset", Fields{"scope": scope})
	return nil
}

// names returns the sorted cache names holding at least one record in scope.
func (s *propertyStore) names(scope Scope) []string {
	out := make([]string, 0, len(s.scopes[scope]))
	for name, rec := range s.scopes[scope] {
		if len(rec) > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// record returns a copy of one name's properties in scope.
func (s *propertyStore) record(scope Scope, name string) map[string]any {
	out := make(map[string]any, len(s.scopes[scope][name]))
	for k, v := range s.scopes[scope][name] {
		out[k] = v
	}
	return out
}
