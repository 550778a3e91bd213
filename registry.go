package memocache

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sort"
	"sync"

	pr "github.com/unkn0wn-root/memocache/provider"
)

// Miss is returned by Registry.Call in place of a value when
// report_on_cache_miss is set and the call missed.
var Miss = missMarker{}

type missMarker struct{}

func (missMarker) String() string { return "<cache miss>" }

// Registry owns all cache state of a process: properties, the memory tier,
// the persisted tier and perf counters. It replaces process-wide globals;
// build one with New and hand it to Wrap.
//
// Methods are safe for concurrent use. The lock is released while a wrapped
// function computes, so concurrent misses on one key all compute and the
// last store wins.
type Registry struct {
	mu       sync.Mutex
	provider pr.Provider
	props    *propertyStore
	disk     *diskStore
	mem      *memoryStore
	perf     *perfTracker
	log      Logger
	hooks    Hooks
}

func newRegistry(ctx context.Context, opts Options) (*Registry, error) {
	log := coalesce[Logger](opts.Logger, NopLogger{})
	hooks := coalesce[Hooks](opts.Hooks, NopHooks{})
	pf := coalesce(opts.PropertyFormat, FormatJSON)
	if !pf.Valid() {
		return nil, &ConfigurationError{Op: "property format", Err: fmt.Errorf("unknown storage format %q", pf)}
	}

	p := newProvider(opts)
	props, err := newPropertyStore(ctx, p, pf, opts.MaxArtifactBytes, log)
	if err != nil {
		return nil, err
	}
	disk := &diskStore{provider: p, props: props, maxBytes: opts.MaxArtifactBytes, log: log}
	return &Registry{
		provider: p,
		props:    props,
		disk:     disk,
		mem:      newMemoryStore(disk, log, hooks),
		perf:     newPerfTracker(),
		log:      log,
		hooks:    hooks,
	}, nil
}

// Close releases the provider.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

// Register records f as name's storage format unless one is already set.
// A different existing format is a ConfigurationError. It returns the
// canonical name.
func (r *Registry) Register(ctx context.Context, name string, f Format) (string, error) {
	name = CanonicalName(name)
	if name == "" {
		return "", &ConfigurationError{Op: "register", Err: errors.New("empty cache name")}
	}
	f = coalesce(f, FormatJSON)
	if !f.Valid() {
		return "", &ConfigurationError{Op: "register", Name: name, Err: fmt.Errorf("unknown storage format %q", f)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.props.storageFormat(name); ok {
		if cur != f {
			return "", &ConfigurationError{
				Op:   "register",
				Name: name,
				Err:  fmt.Errorf("%w (have %s, got %s)", errFormatReadOnly, cur, f),
			}
		}
		return name, nil
	}
	if err := r.setPropertyLocked(ctx, ScopeSystem, name, PropStorageFormat, string(f)); err != nil {
		return "", err
	}
	r.log.Debug("registered cache", cacheFields(name).With("format", f))
	return name, nil
}

// Call is the coordinator step behind every wrapped call. It returns the
// cached value for (name, key), or applies the miss policy: abort with a
// *CacheMissAbortError, report with the Miss marker, or run compute, store
// its result and flush when writeThrough is set. Errors from compute are
// returned unchanged and nothing is stored.
func (r *Registry) Call(ctx context.Context, name, key string, writeThrough bool, compute func(context.Context) (any, error)) (any, error) {
	name = CanonicalName(name)

	r.mu.Lock()
	cache, err := r.hydrateLocked(ctx, name)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.perf.recordCall(name)

	force := r.props.flag(name, PropForceRefresh)
	if v, ok := cache[key]; ok && !force {
		r.perf.recordHit(name)
		r.hooks.Hit(name, key)
		r.mu.Unlock()
		return v, nil
	}

	r.perf.recordMiss(name)
	reason := MissAbsent
	if force {
		reason = MissForceRefresh
	}
	r.hooks.Miss(name, key, reason)

	if r.props.flag(name, PropAbortOnCacheMiss) {
		r.mu.Unlock()
		return nil, &CacheMissAbortError{Name: name, Key: key}
	}
	if r.props.flag(name, PropReportOnMiss) {
		r.mu.Unlock()
		r.log.Info("cache miss reported", cacheFields(name).With("key", key))
		return Miss, nil
	}
	r.mu.Unlock()

	v, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// a reset while computing drops the old map; store into the current one
	cache, err = r.hydrateLocked(ctx, name)
	if err != nil {
		return nil, err
	}
	cache[key] = v
	if writeThrough {
		if err := r.mem.flushToDisk(ctx, name); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// replace swaps a hydrated generic value for its typed form. It does
// nothing if the entry is gone or was already replaced.
func (r *Registry) replace(name, key string, old, typed any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cache, ok := r.mem.peek(name)
	if !ok {
		return
	}
	cur, ok := cache[key]
	if !ok || !sameRef(cur, old) {
		return
	}
	cache[key] = typed
}

// sameRef reports whether a and b are the same stored value. Reference
// kinds compare by pointer so uncomparable values never panic.
func sameRef(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return !va.IsValid() && !vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	return va.Comparable() && a == b
}

func (r *Registry) hydrateLocked(ctx context.Context, name string) (Storage, error) {
	cache, hydrated, err := r.mem.getOrHydrate(ctx, name)
	if err != nil {
		return nil, err
	}
	if hydrated && r.perf.state(name) == PerfNever && r.props.flag(name, PropEnablePerf) {
		r.perf.enable(name)
	}
	return cache, nil
}

// GetCache returns a copy of name's memory tier, hydrating it on first use.
func (r *Registry) GetCache(ctx context.Context, name string) (Storage, error) {
	name = CanonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	cache, err := r.hydrateLocked(ctx, name)
	if err != nil {
		return nil, err
	}
	return maps.Clone(cache), nil
}

// SetProperty validates and persists one property. The scope's whole
// artifact is rewritten.
func (r *Registry) SetProperty(ctx context.Context, scope Scope, name, key string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setPropertyLocked(ctx, scope, CanonicalName(name), key, value)
}

func (r *Registry) setPropertyLocked(ctx context.Context, scope Scope, name, key string, value any) error {
	if err := r.props.set(ctx, scope, name, key, value); err != nil {
		return err
	}
	v, _, _ := r.props.get(scope, name, key)
	r.hooks.PropertySet(scope, name, key, v)
	return nil
}

// GetProperty returns a property value. Absent user properties read as
// false; absent system properties return ok=false.
func (r *Registry) GetProperty(scope Scope, name, key string) (value any, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok, err := r.props.get(scope, CanonicalName(name), key)
	if err != nil {
		return nil, false, err
	}
	if !ok && scope == ScopeUser {
		return false, true, nil
	}
	return v, ok, nil
}

// Properties returns a copy of name's records in scope.
func (r *Registry) Properties(scope Scope, name string) (map[string]any, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.props.record(scope, CanonicalName(name)), nil
}

// ResetProperties clears every record in scope.
func (r *Registry) ResetProperties(ctx context.Context, scope Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.props.reset(ctx, scope)
}

// ResetCache clears both tiers of name. Afterwards GetCache returns an empty
// map and the artifact is absent until the next hydration recreates it.
func (r *Registry) ResetCache(ctx context.Context, name string) error {
	name = CanonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetLocked(ctx, name)
}

func (r *Registry) resetLocked(ctx context.Context, name string) error {
	r.mem.evict(name)
	exists, err := r.disk.exists(ctx, name)
	if err != nil {
		return fmt.Errorf("memocache: reset %q: %w", name, err)
	}
	if exists {
		if err := r.disk.delete(ctx, name); err != nil {
			return err
		}
	}
	r.log.Debug("cache reset", cacheFields(name).With("artifact_removed", exists))
	r.hooks.Reset(name)
	return nil
}

// ResetMemory drops name's memory tier only. The next call re-hydrates.
func (r *Registry) ResetMemory(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mem.evict(CanonicalName(name))
}

// ResetDisk deletes name's artifact only. Unlike ResetCache it fails with a
// *MissingArtifactError when there is nothing to delete.
func (r *Registry) ResetDisk(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disk.delete(ctx, CanonicalName(name))
}

// ResetAll resets every name known from registrations or memory.
func (r *Registry) ResetAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, name := range r.namesLocked() {
		if err := r.resetLocked(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FlushToDisk merges name's memory tier into its artifact.
func (r *Registry) FlushToDisk(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mem.flushToDisk(ctx, CanonicalName(name))
}

// FlushAll flushes every hydrated name.
func (r *Registry) FlushAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := r.mem.names()
	sort.Strings(names)
	var errs []error
	for _, name := range names {
		if err := r.mem.flushToDisk(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ForceFromDisk discards name's memory tier and hydrates it again from the
// artifact. Unflushed entries are lost.
func (r *Registry) ForceFromDisk(ctx context.Context, name string) (Storage, error) {
	name = CanonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mem.evict(name)
	cache, err := r.hydrateLocked(ctx, name)
	if err != nil {
		return nil, err
	}
	return maps.Clone(cache), nil
}

// EnablePerf starts counting calls for name from zero and persists
// enable_perf so later processes count from their first hydration.
func (r *Registry) EnablePerf(ctx context.Context, name string) error {
	name = CanonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setPropertyLocked(ctx, ScopeUser, name, PropEnablePerf, true); err != nil {
		return err
	}
	r.perf.enable(name)
	return nil
}

// DisablePerf stops counting and marks name as explicitly disabled.
func (r *Registry) DisablePerf(ctx context.Context, name string) error {
	name = CanonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setPropertyLocked(ctx, ScopeUser, name, PropEnablePerf, false); err != nil {
		return err
	}
	r.perf.disable(name)
	return nil
}

// PerfState reports whether counting is on, off, or was never enabled.
func (r *Registry) PerfState(name string) PerfState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perf.state(CanonicalName(name))
}

// PerfStats returns name's counters; ok is false unless counting is on.
func (r *Registry) PerfStats(name string) (PerfStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perf.stats(CanonicalName(name))
}

// GetPerfStats renders name's counters as one line, e.g.
//
//	square: hits=1 misses=1 total=2 hit_rate=0.50
//
// It returns "" and logs a warning when counting was never enabled.
func (r *Registry) GetPerfStats(name string) string {
	name = CanonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	line := r.perf.format(name)
	if line == "" {
		r.log.Warn("perf stats requested but never enabled", cacheFields(name))
	}
	return line
}

// Names returns every known cache name, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	seen := make(map[string]struct{})
	for _, scope := range []Scope{ScopeSystem, ScopeUser} {
		for _, n := range r.props.names(scope) {
			seen[n] = struct{}{}
		}
	}
	for _, n := range r.mem.names() {
		seen[n] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Format returns name's registered storage format.
func (r *Registry) Format(name string) (Format, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.props.storageFormat(CanonicalName(name))
}

// Artifact returns the persisted artifact name for name, e.g.
// "cache.square.json".
func (r *Registry) Artifact(name string) (string, bool) {
	f, ok := r.Format(name)
	if !ok {
		return "", false
	}
	return artifactName(CanonicalName(name), f), true
}

// ArtifactSize returns the stored size of name's artifact in bytes; ok is
// false when the name is unregistered or nothing is stored yet.
func (r *Registry) ArtifactSize(ctx context.Context, name string) (size int, ok bool, err error) {
	art, ok := r.Artifact(name)
	if !ok {
		return 0, false, nil
	}
	b, ok, err := r.provider.Get(ctx, art)
	if err != nil {
		return 0, false, fmt.Errorf("memocache: read %s: %w", art, err)
	}
	return len(b), ok, nil
}
