// Package store implements the time-series store (spec.md component B): a
// bounded, retention-pruned table of price snapshots with bulk insert and
// per-item history queries. Grounded on the teacher's
// internal/repository/gorm upsert idiom (clause.OnConflict) and
// internal/db's Open/AutoMigrate split.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketwatch/internal/models"
)

// ErrStoreFailure is returned (wrapped) for any transactional failure, per
// spec.md §7's StoreFailure taxonomy entry.
var ErrStoreFailure = errors.New("store failure")

// Counts is the diagnostic table-cardinality snapshot §4.B's counts()
// operation returns.
type Counts struct {
	Prices     int64 `json:"prices"`
	Watchlists int64 `json:"watchlists"`
}

// Store is the single logical writer (component J) plus many concurrent
// readers (components D, I) described in §4.B/§5. All methods are safe for
// concurrent use; writes from multiple goroutines still serialize correctly
// via the underlying DB, but the design assumes one writer in practice.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger

	// batchSize bounds how many rows are upserted per transaction, per
	// spec.md §4.B's "1000 rows per transaction" policy.
	batchSize int
}

func New(db *gorm.DB, logger *zap.Logger, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Store{db: db, logger: logger, batchSize: batchSize}
}

// PutSnapshots transactionally bulk-inserts a batch of snapshots. Duplicate
// (item_id, timestamp) pairs are a no-op (overwrite-same), matching the
// idempotence law in §8. On failure the transaction rolls back and the
// caller gets ErrStoreFailure; nothing partial is left behind.
func (s *Store) PutSnapshots(ctx context.Context, batch []models.Snapshot) error {
	if len(batch) == 0 {
		return nil
	}
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.db.WithContext(tctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(batch); start += s.batchSize {
			end := start + s.batchSize
			if end > len(batch) {
				end = len(batch)
			}
			chunk := batch[start:end]
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "item_id"}, {Name: "timestamp"}},
				DoUpdates: clause.AssignmentColumns([]string{"low", "high", "volume"}),
			}).Create(&chunk)
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("put_snapshots failed", zap.Error(err), zap.Int("batch", len(batch)))
		}
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

// Recent returns the last n snapshots for an item in descending time order.
func (s *Store) Recent(ctx context.Context, itemID models.ItemID, n int) ([]models.Snapshot, error) {
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var rows []models.Snapshot
	q := s.db.WithContext(tctx).Where("item_id = ?", itemID).Order("timestamp DESC")
	if n > 0 {
		q = q.Limit(n)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return rows, nil
}

// Range returns snapshots with timestamp >= sinceTS, ascending.
func (s *Store) Range(ctx context.Context, itemID models.ItemID, sinceTS int64) ([]models.Snapshot, error) {
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var rows []models.Snapshot
	err := s.db.WithContext(tctx).
		Where("item_id = ? AND timestamp >= ?", itemID, sinceTS).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return rows, nil
}

// Prune deletes rows older than now-retention. Idempotent; safe to run on
// its own timer at least once per hour per §4.B.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cutoff := time.Now().Add(-retention).Unix()
	res := s.db.WithContext(tctx).Where("timestamp < ?", cutoff).Delete(&models.Snapshot{})
	if res.Error != nil {
		return 0, errors.Join(ErrStoreFailure, res.Error)
	}
	return res.RowsAffected, nil
}

// Counts reports table cardinalities for the diagnostic health endpoint.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var c Counts
	if err := s.db.WithContext(tctx).Model(&models.Snapshot{}).Count(&c.Prices).Error; err != nil {
		return Counts{}, errors.Join(ErrStoreFailure, err)
	}
	if err := s.db.WithContext(tctx).Model(&models.Watchlist{}).Count(&c.Watchlists).Error; err != nil {
		return Counts{}, errors.Join(ErrStoreFailure, err)
	}
	return c, nil
}

// LatestSince returns each item's most recent snapshot among those with
// timestamp >= sinceTS, one row per item_id, used to join a time window
// against the item catalog for /api/all_items.
func (s *Store) LatestSince(ctx context.Context, sinceTS int64) ([]models.Snapshot, error) {
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var rows []models.Snapshot
	err := s.db.WithContext(tctx).
		Where("timestamp >= ?", sinceTS).
		Order("item_id ASC, timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	latest := make([]models.Snapshot, 0, len(rows))
	var last models.ItemID
	haveLast := false
	for _, r := range rows {
		if haveLast && r.ItemID == last {
			continue
		}
		latest = append(latest, r)
		last = r.ItemID
		haveLast = true
	}
	return latest, nil
}

// Last24h returns up to the last 24 hours of snapshots for one item,
// ascending, used by the /api/dumps/{item_id} detail endpoint.
func (s *Store) Last24h(ctx context.Context, itemID models.ItemID, now time.Time) ([]models.Snapshot, error) {
	rows, err := s.Range(ctx, itemID, now.Add(-24*time.Hour).Unix())
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })
	return rows, nil
}
