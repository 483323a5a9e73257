// Package catalog implements the item catalog cache (spec.md component C):
// an atomically-swapped snapshot of item metadata, refreshed periodically
// from the upstream mapping feed and persisted to disk so a cold start has
// something to serve before the first refresh completes. Grounded on the
// teacher's atomic.Pointer materialized-view pattern (see internal/views
// for the sibling usage) and on internal/repository's load-on-boot /
// refresh-on-timer split.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"marketwatch/internal/models"
)

// ErrNoData is returned by All before the first successful refresh when no
// usable disk cache exists. Get reports a missing item through its bool
// result instead.
var ErrNoData = errors.New("catalog: no data loaded")

type snapshot struct {
	items   map[models.ItemID]models.ItemMeta
	builtAt time.Time
}

// Fetcher is satisfied by *upstream.Client; kept as an interface so the
// catalog can be tested without a network dependency.
type Fetcher interface {
	FetchMapping(ctx context.Context) ([]models.ItemMeta, error)
}

// Cache holds the current item catalog and refreshes it on demand or on a
// timer. The zero value is not usable; construct with New.
type Cache struct {
	fetcher   Fetcher
	cachePath string
	logger    *zap.Logger

	current atomic.Pointer[snapshot]
}

// New builds a Cache. cachePath may be empty to disable disk persistence.
func New(fetcher Fetcher, cachePath string, logger *zap.Logger) *Cache {
	return &Cache{fetcher: fetcher, cachePath: cachePath, logger: logger}
}

// LoadFromDisk populates the cache from cachePath, if present, so that a
// cold-started process has an item catalog before the first network
// refresh succeeds. Any error reading or parsing the file is logged and
// swallowed; a missing disk cache is not itself an error.
func (c *Cache) LoadFromDisk() {
	if c.cachePath == "" {
		return
	}
	b, err := os.ReadFile(c.cachePath)
	if err != nil {
		return
	}
	var items []models.ItemMeta
	if err := json.Unmarshal(b, &items); err != nil {
		if c.logger != nil {
			c.logger.Warn("catalog: disk cache unreadable, ignoring", zap.Error(err))
		}
		return
	}
	c.store(items)
	if c.logger != nil {
		c.logger.Info("catalog: loaded from disk cache", zap.Int("items", len(items)), zap.String("path", c.cachePath))
	}
}

// Refresh fetches the mapping feed and atomically replaces the in-memory
// catalog, then persists it to disk. The old snapshot remains readable by
// any caller already holding it, per the no-ad-hoc-locking redesign flag.
func (c *Cache) Refresh(ctx context.Context) (int, error) {
	items, err := c.fetcher.FetchMapping(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog refresh: %w", err)
	}
	c.store(items)
	if err := c.persist(items); err != nil && c.logger != nil {
		c.logger.Warn("catalog: disk persist failed", zap.Error(err))
	}
	return len(items), nil
}

func (c *Cache) store(items []models.ItemMeta) {
	m := make(map[models.ItemID]models.ItemMeta, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	c.current.Store(&snapshot{items: m, builtAt: time.Now()})
}

func (c *Cache) persist(items []models.ItemMeta) error {
	if c.cachePath == "" {
		return nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, c.cachePath)
}

// Get returns the metadata for one item.
func (c *Cache) Get(id models.ItemID) (models.ItemMeta, bool) {
	s := c.current.Load()
	if s == nil {
		return models.ItemMeta{}, false
	}
	m, ok := s.items[id]
	return m, ok
}

// All returns every cached item, unordered.
func (c *Cache) All() ([]models.ItemMeta, time.Time, error) {
	s := c.current.Load()
	if s == nil {
		return nil, time.Time{}, ErrNoData
	}
	out := make([]models.ItemMeta, 0, len(s.items))
	for _, m := range s.items {
		out = append(out, m)
	}
	return out, s.builtAt, nil
}

// Len reports how many items are currently cached.
func (c *Cache) Len() int {
	s := c.current.Load()
	if s == nil {
		return 0
	}
	return len(s.items)
}

// BuiltAt reports when the current snapshot was built.
func (c *Cache) BuiltAt() time.Time {
	s := c.current.Load()
	if s == nil {
		return time.Time{}
	}
	return s.builtAt
}
