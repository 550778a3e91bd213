// Package memocache memoizes expensive or rate-limited calls (LLM
// completions, GitHub/HTTP fetches) with a two-tier cache: an in-memory map
// per function, backed by one persisted artifact per function.
//
// Components:
//   - Registry: owns all state of a process (no package globals). Build one
//     with New and pass it around.
//   - Properties: system scope (storage_format, fixed once set) and user
//     scope (force_refresh, abort_on_cache_miss, report_on_cache_miss,
//     enable_perf). One artifact per scope, rewritten on every change.
//   - Provider: byte store for artifacts (files by default; Redis, BigCache
//     and Ristretto available).
//   - Codec: json, yaml, msgpack, cbor or protobuf artifacts.
//
// Artifacts (file provider, working directory by default):
//
//	cache.<name>.<ext>             - one per wrapped function
//	cache_property.system.<ext>    - system properties of all functions
//	cache_property.user.<ext>      - user properties of all functions
//
// Wrapping:
//
//	reg, _ := memocache.New(ctx, memocache.Options{Dir: ".cache"})
//	square := memocache.MustWrap(ctx, reg, func(_ context.Context, x int) (int, error) {
//	    return x * x, nil
//	}, memocache.WrapConfig{Name: "square", WriteThrough: true})
//	v, _ := square(ctx, 4) // computes 16, writes cache.square.json {"[4]":16}
//	v, _ = square(ctx, 4)  // served from memory
//
// Entries never expire; they live until ResetCache/ResetAll.
package memocache
