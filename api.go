package memocache

import (
	"context"

	pr "github.com/unkn0wn-root/memocache/provider"
	"github.com/unkn0wn-root/memocache/provider/file"
)

// Scope selects one of the two property maps.
type Scope string

const (
	// ScopeSystem holds per-function immutable configuration.
	ScopeSystem Scope = "system"
	// ScopeUser holds per-function runtime toggles.
	ScopeUser Scope = "user"
)

// Property keys.
const (
	PropStorageFormat    = "storage_format"       // system
	PropForceRefresh     = "force_refresh"        // user
	PropAbortOnCacheMiss = "abort_on_cache_miss"  // user
	PropReportOnMiss     = "report_on_cache_miss" // user
	PropEnablePerf       = "enable_perf"          // user
)

// IntrinsicSuffix is stripped from cache names so an implementation function
// and its cached facade share one cache.
const IntrinsicSuffix = "_intrinsic"

// Options configure a Registry. All fields are optional.
type Options struct {
	// Provider stores artifacts. nil => file provider rooted at Dir.
	Provider pr.Provider
	// Dir is used only when Provider is nil. "" => working directory.
	Dir string
	// PropertyFormat encodes the two property artifacts. "" => json.
	PropertyFormat Format
	// MaxArtifactBytes rejects larger artifacts on decode. 0 => unlimited.
	MaxArtifactBytes int

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

// New builds a Registry and loads both property scopes from the provider.
// Construct one per process (or one per test) and pass it to Wrap.
func New(ctx context.Context, opts Options) (*Registry, error) {
	return newRegistry(ctx, opts)
}

// coalesce returns def when v is the zero value of T, otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func newProvider(opts Options) pr.Provider {
	if opts.Provider != nil {
		return opts.Provider
	}
	return file.New(file.Config{Dir: opts.Dir})
}
