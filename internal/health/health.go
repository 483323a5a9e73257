// Package health holds a tiny atomically-published liveness/readiness
// status, written by the poller/scheduler (component J) and read by the
// /api/health endpoint (component I). Kept as its own package so neither
// side needs to import the other.
package health

import (
	"sync/atomic"
	"time"
)

// Status is an immutable snapshot of upstream/ingest health.
type Status struct {
	LastIngestOK      bool
	LastIngestAt      time.Time
	LastIngestErr     string
	ConsecutiveErrors int
	LastCatalogOK     bool
	LastCatalogAt     time.Time
}

// Tracker publishes Status behind an atomic pointer.
type Tracker struct {
	current atomic.Pointer[Status]
}

func NewTracker() *Tracker {
	t := &Tracker{}
	t.current.Store(&Status{})
	return t
}

func (t *Tracker) Get() Status {
	return *t.current.Load()
}

func (t *Tracker) RecordIngest(ok bool, err error, consecutiveErrors int) {
	s := Status{
		LastIngestOK:      ok,
		LastIngestAt:      time.Now(),
		ConsecutiveErrors: consecutiveErrors,
	}
	prev := t.current.Load()
	s.LastCatalogOK = prev.LastCatalogOK
	s.LastCatalogAt = prev.LastCatalogAt
	if err != nil {
		s.LastIngestErr = err.Error()
	}
	t.current.Store(&s)
}

func (t *Tracker) RecordCatalog(ok bool) {
	prev := t.current.Load()
	s := *prev
	s.LastCatalogOK = ok
	s.LastCatalogAt = time.Now()
	t.current.Store(&s)
}
