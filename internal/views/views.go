// Package views implements the materialized views (spec.md component E):
// four ordered record sequences (top_flips, dumps, spikes, all_items)
// rebuilt wholesale at the end of each ingest tick and published behind an
// atomic pointer swap, per §9's explicit redesign flag against ad-hoc
// mutex-guarded mutable lists. Grounded on the teacher's opportunity.Manager
// upsert/evict lifecycle, adapted here to a wholesale-rebuild-every-tick
// shape since views have no individual expiry.
package views

import (
	"sync/atomic"
	"time"

	"marketwatch/internal/models"
)

// Snapshot is one immutable generation of all four views.
type Snapshot struct {
	Generation uint64
	BuiltAt    time.Time
	TopFlips   []models.FlipCandidate
	Dumps      []models.DumpEvent
	Spikes     []models.SpikeEvent
	AllItems   []models.ItemMeta
}

// Views holds the current generation behind an atomic.Pointer. Readers
// call Current() and get a stable, complete snapshot regardless of
// concurrent rebuilds.
type Views struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

func New() *Views {
	v := &Views{}
	v.current.Store(&Snapshot{BuiltAt: time.Time{}})
	return v
}

// Rebuild atomically publishes a new generation built from this tick's
// event engine output. Inputs are consumed as given; callers are expected
// to have already applied the engine's sort order.
func (v *Views) Rebuild(topFlips []models.FlipCandidate, dumps []models.DumpEvent, spikes []models.SpikeEvent, allItems []models.ItemMeta) *Snapshot {
	gen := v.generation.Add(1)
	snap := &Snapshot{
		Generation: gen,
		BuiltAt:    time.Now(),
		TopFlips:   topFlips,
		Dumps:      dumps,
		Spikes:     spikes,
		AllItems:   allItems,
	}
	v.current.Store(snap)
	return snap
}

// Current returns the most recently published snapshot. Never nil after
// New.
func (v *Views) Current() *Snapshot {
	return v.current.Load()
}
