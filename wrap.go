package memocache

import (
	"context"
	"errors"
)

// Func is the shape of every wrappable operation: one argument value (a
// struct for several named arguments) and a result.
type Func[A, R any] func(ctx context.Context, args A) (R, error)

// WrapConfig describes how one function is cached.
type WrapConfig struct {
	// Name is the cache name. A trailing "_intrinsic" is stripped. Required.
	Name string
	// Format of the persisted artifact. "" => json. Fixed after the first
	// registration of Name.
	Format Format
	// WriteThrough flushes to the artifact after every computed miss.
	WriteThrough bool
	// Exclude lists argument fields (Go or json name) that must not be part
	// of the key, e.g. a client handle or an API token.
	Exclude []string
	// HashKeys stores xxhash64 digests instead of canonical JSON keys.
	HashKeys bool
}

// Wrap registers cfg.Name and returns fn with caching applied. The returned
// function has the same contract as fn: a cached result is returned exactly
// as a fresh one would be.
//
// When report_on_cache_miss is set and a call misses, the returned function
// yields the zero R and ErrMissReported without calling fn.
func Wrap[A, R any](ctx context.Context, r *Registry, fn Func[A, R], cfg WrapConfig) (Func[A, R], error) {
	if r == nil {
		return nil, &ConfigurationError{Op: "wrap", Name: cfg.Name, Err: errors.New("nil registry")}
	}
	if fn == nil {
		return nil, &ConfigurationError{Op: "wrap", Name: cfg.Name, Err: errors.New("nil function")}
	}
	format := coalesce(cfg.Format, FormatJSON)
	name, err := r.Register(ctx, cfg.Name, format)
	if err != nil {
		return nil, err
	}
	exclude := append([]string(nil), cfg.Exclude...)

	return func(ctx context.Context, args A) (R, error) {
		var zero R
		key, err := Key(args, exclude, cfg.HashKeys)
		if err != nil {
			return zero, &EncodingError{Name: name, Format: format, Op: "key", Err: err}
		}

		v, err := r.Call(ctx, name, key, cfg.WriteThrough, func(ctx context.Context) (any, error) {
			return fn(ctx, args)
		})
		if err != nil {
			return zero, err
		}
		if _, ok := v.(missMarker); ok {
			return zero, ErrMissReported
		}
		if typed, ok := v.(R); ok {
			return typed, nil
		}
		if v == nil {
			return zero, nil
		}

		typed, err := convertValue[R](v, format)
		if err != nil {
			return zero, &EncodingError{Name: name, Format: format, Op: "convert", Err: err}
		}
		r.replace(name, key, v, typed)
		return typed, nil
	}, nil
}

// MustWrap is like Wrap but panics on error.
// Handy for package-level wiring in tests/examples.
func MustWrap[A, R any](ctx context.Context, r *Registry, fn Func[A, R], cfg WrapConfig) Func[A, R] {
	w, err := Wrap(ctx, r, fn, cfg)
	if err != nil {
		panic(err)
	}
	return w
}
