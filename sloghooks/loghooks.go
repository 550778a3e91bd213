package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/memocache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery  uint64
	MissEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix. Keys carry call
	// arguments (prompts, URLs), so they are never logged verbatim.
	Redact func(string) string
}

// Hooks logs cache events through slog.
type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ memocache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(name, key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("memocache.hit",
		"name", name,
		"key", h.redact(key))
}

func (h *Hooks) Miss(name, key, reason string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Info("memocache.miss",
		"name", name,
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) Hydrated(name string, entries int) {
	if h.l == nil {
		return
	}
	h.l.Debug("memocache.hydrated",
		"name", name,
		"entries", entries)
}

func (h *Hooks) Flushed(name string, entries int) {
	if h.l == nil {
		return
	}
	h.l.Debug("memocache.flushed",
		"name", name,
		"entries", entries)
}

func (h *Hooks) Reset(name string) {
	if h.l == nil {
		return
	}
	h.l.Info("memocache.reset", "name", name)
}

func (h *Hooks) PropertySet(scope memocache.Scope, name, key string, value any) {
	if h.l == nil {
		return
	}
	h.l.Info("memocache.property_set",
		"scope", string(scope),
		"name", name,
		"key", key,
		"value", value)
}
