package memocache

// Miss reasons passed to Hooks.Miss.
const (
	MissAbsent       = "absent"
	MissForceRefresh = "force_refresh"
)

// Hooks lightweight callbacks for cache events, the side channel a progress
// or telemetry display consumes. Implementations MUST be cheap and
// non-blocking: the registry calls them on the call path while holding its
// lock.
type Hooks interface {
	// A call was answered from the cache.
	Hit(name, key string)
	// A call was not answered from the cache.
	// reason ∈ {"absent", "force_refresh"}
	Miss(name, key, reason string)
	// A name's artifact was loaded into memory.
	Hydrated(name string, entries int)
	// A name's memory state was written to its artifact.
	Flushed(name string, entries int)
	// Both tiers of a name were cleared.
	Reset(name string)
	// A property was persisted.
	PropertySet(scope Scope, name, key string, value any)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string, string)                     {}
func (NopHooks) Miss(string, string, string)            {}
func (NopHooks) Hydrated(string, int)                   {}
func (NopHooks) Flushed(string, int)                    {}
func (NopHooks) Reset(string)                           {}
func (NopHooks) PropertySet(Scope, string, string, any) {}
