package store

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"marketwatch/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Snapshot{}, &models.Watchlist{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func ptr(v int64) *int64 { return &v }

func TestPutSnapshotsIdempotentUpsert(t *testing.T) {
	db := openTestDB(t)
	s := New(db, nil, 1000)
	ctx := context.Background()

	batch := []models.Snapshot{
		{ItemID: 1, Timestamp: 100, Low: ptr(10), High: ptr(20), Volume: ptr(int64(5))},
	}
	if err := s.PutSnapshots(ctx, batch); err != nil {
		t.Fatalf("PutSnapshots (first): %v", err)
	}
	// Re-ingest the identical row: must not error or duplicate, per spec.md
	// §8 scenario S2's idempotent re-ingest requirement.
	if err := s.PutSnapshots(ctx, batch); err != nil {
		t.Fatalf("PutSnapshots (second, same data): %v", err)
	}

	rows, err := s.Recent(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (idempotent upsert)", len(rows))
	}

	// An updated volume for the same (item_id, timestamp) overwrites in place.
	updated := []models.Snapshot{
		{ItemID: 1, Timestamp: 100, Low: ptr(10), High: ptr(20), Volume: ptr(int64(50))},
	}
	if err := s.PutSnapshots(ctx, updated); err != nil {
		t.Fatalf("PutSnapshots (update): %v", err)
	}
	rows, _ = s.Recent(ctx, 1, 10)
	if len(rows) != 1 || rows[0].VolumeOrZero() != 50 {
		t.Errorf("expected overwritten volume=50, got %+v", rows)
	}
}

func TestPutSnapshotsEmptyBatchNoop(t *testing.T) {
	db := openTestDB(t)
	s := New(db, nil, 1000)
	if err := s.PutSnapshots(context.Background(), nil); err != nil {
		t.Errorf("empty batch should be a no-op, got error: %v", err)
	}
}

func TestRangeAscendingOrder(t *testing.T) {
	db := openTestDB(t)
	s := New(db, nil, 1000)
	ctx := context.Background()
	batch := []models.Snapshot{
		{ItemID: 7, Timestamp: 300, Low: ptr(1), High: ptr(2), Volume: ptr(int64(1))},
		{ItemID: 7, Timestamp: 100, Low: ptr(1), High: ptr(2), Volume: ptr(int64(1))},
		{ItemID: 7, Timestamp: 200, Low: ptr(1), High: ptr(2), Volume: ptr(int64(1))},
	}
	if err := s.PutSnapshots(ctx, batch); err != nil {
		t.Fatalf("PutSnapshots: %v", err)
	}
	rows, err := s.Range(ctx, 7, 0)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Timestamp < rows[i-1].Timestamp {
			t.Fatalf("rows not ascending: %+v", rows)
		}
	}
}

func TestPruneRemovesOldRows(t *testing.T) {
	db := openTestDB(t)
	s := New(db, nil, 1000)
	ctx := context.Background()
	now := time.Now()
	batch := []models.Snapshot{
		{ItemID: 1, Timestamp: now.Add(-48 * time.Hour).Unix(), Low: ptr(1), High: ptr(2), Volume: ptr(int64(1))},
		{ItemID: 1, Timestamp: now.Unix(), Low: ptr(1), High: ptr(2), Volume: ptr(int64(1))},
	}
	if err := s.PutSnapshots(ctx, batch); err != nil {
		t.Fatalf("PutSnapshots: %v", err)
	}
	n, err := s.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}
	rows, _ := s.Recent(ctx, 1, 10)
	if len(rows) != 1 {
		t.Errorf("expected 1 row remaining, got %d", len(rows))
	}
}

func TestCounts(t *testing.T) {
	db := openTestDB(t)
	s := New(db, nil, 1000)
	ctx := context.Background()
	if err := s.PutSnapshots(ctx, []models.Snapshot{
		{ItemID: 1, Timestamp: 1, Low: ptr(1), High: ptr(2), Volume: ptr(int64(1))},
	}); err != nil {
		t.Fatalf("PutSnapshots: %v", err)
	}
	c, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c.Prices != 1 {
		t.Errorf("prices count = %d, want 1", c.Prices)
	}
}
