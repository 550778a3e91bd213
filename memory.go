package memocache

import "context"

// memoryStore is the in-process tier: cache name -> key -> value. A name is
// hydrated from disk on first touch and is the source of truth afterwards.
type memoryStore struct {
	disk   *diskStore
	caches map[string]Storage
	log    Logger
	hooks  Hooks
}

func newMemoryStore(d *diskStore, log Logger, hooks Hooks) *memoryStore {
	return &memoryStore{disk: d, caches: make(map[string]Storage), log: log, hooks: hooks}
}

// getOrHydrate is the only path from disk into memory. hydrated reports
// whether this call performed the load.
func (m *memoryStore) getOrHydrate(ctx context.Context, name string) (s Storage, hydrated bool, err error) {
	if s, ok := m.caches[name]; ok {
		return s, false, nil
	}
	s, err = m.disk.load(ctx, name)
	if err != nil {
		return nil, false, err
	}
	m.caches[name] = s
	m.log.Debug("hydrated cache", cacheFields(name).With("entries", len(s)))
	m.hooks.Hydrated(name, len(s))
	return s, true, nil
}

func (m *memoryStore) peek(name string) (Storage, bool) {
	s, ok := m.caches[name]
	return s, ok
}

// evict drops the in-memory map only.
func (m *memoryStore) evict(name string) {
	delete(m.caches, name)
}

// flushToDisk merges memory over the current artifact (disk-only keys are
// kept, memory wins on conflicts), writes the result and republishes it as
// the memory state. A name with no memory state is left untouched.
func (m *memoryStore) flushToDisk(ctx context.Context, name string) error {
	mem, ok := m.caches[name]
	if !ok {
		return nil
	}
	merged, err := m.disk.load(ctx, name)
	if err != nil {
		return err
	}
	for k, v := range mem {
		merged[k] = v
	}
	if err := m.disk.save(ctx, name, merged); err != nil {
		return err
	}
	m.caches[name] = merged
	m.log.Debug("flushed cache", cacheFields(name).With("entries", len(merged)))
	m.hooks.Flushed(name, len(merged))
	return nil
}

func (m *memoryStore) names() []string {
	out := make([]string, 0, len(m.caches))
	for name := range m.caches {
		out = append(out, name)
	}
	return out
}
