package memocache

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// PerfStats are the counters of one cache name.
type PerfStats struct {
	Hits   uint64
	Misses uint64
	Total  uint64
}

// HitRate is Hits/Total, 0 when nothing was counted.
func (s PerfStats) HitRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Total)
}

// PerfState distinguishes "never enabled" from "explicitly disabled".
type PerfState int

const (
	PerfNever PerfState = iota
	PerfEnabled
	PerfDisabled
)

type perfRecord struct {
	enabled bool
	stats   PerfStats
}

type perfTracker struct {
	records map[string]*perfRecord
}

func newPerfTracker() *perfTracker {
	return &perfTracker{records: make(map[string]*perfRecord)}
}

// enable starts counting from zero, also when re-enabling.
func (p *perfTracker) enable(name string) {
	p.records[name] = &perfRecord{enabled: true}
}

// disable leaves an off marker instead of deleting the record.
func (p *perfTracker) disable(name string) {
	p.records[name] = &perfRecord{}
}

func (p *perfTracker) state(name string) PerfState {
	r, ok := p.records[name]
	switch {
	case !ok:
		return PerfNever
	case r.enabled:
		return PerfEnabled
	default:
		return PerfDisabled
	}
}

func (p *perfTracker) on(name string) *perfRecord {
	if r, ok := p.records[name]; ok && r.enabled {
		return r
	}
	return nil
}

func (p *perfTracker) recordCall(name string) {
	if r := p.on(name); r != nil {
		r.stats.Total++
	}
}

func (p *perfTracker) recordHit(name string) {
	if r := p.on(name); r != nil {
		r.stats.Hits++
	}
}

func (p *perfTracker) recordMiss(name string) {
	if r := p.on(name); r != nil {
		r.stats.Misses++
	}
}

func (p *perfTracker) stats(name string) (PerfStats, bool) {
	r := p.on(name)
	if r == nil {
		return PerfStats{}, false
	}
	return r.stats, true
}

// format renders one line; "" when tracking was never enabled.
func (p *perfTracker) format(name string) string {
	switch p.state(name) {
	case PerfNever:
		return ""
	case PerfDisabled:
		return name + ": perf disabled"
	}
	s := p.records[name].stats
	return fmt.Sprintf("%s: hits=%s misses=%s total=%s hit_rate=%.2f",
		name,
		humanize.Comma(int64(s.Hits)),
		humanize.Comma(int64(s.Misses)),
		humanize.Comma(int64(s.Total)),
		s.HitRate(),
	)
}
