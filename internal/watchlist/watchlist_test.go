package watchlist

import (
	"context"
	"testing"

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
	if err := db.AutoMigrate(&models.Watchlist{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestAddThenList(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	if err := s.Add(ctx, "tenantA", "user1", 42, "Rune scimitar"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	rows, err := s.List(ctx, "tenantA", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].ItemName != "Rune scimitar" {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestAddIsIdempotentAndRefreshesName(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	if err := s.Add(ctx, "tenantA", "user1", 42, "Old name"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, "tenantA", "user1", 42, "New name"); err != nil {
		t.Fatalf("Add (update): %v", err)
	}
	rows, _ := s.List(ctx, "tenantA", "user1")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (re-adding should upsert, not duplicate)", len(rows))
	}
	if rows[0].ItemName != "New name" {
		t.Errorf("ItemName = %q, want refreshed %q", rows[0].ItemName, "New name")
	}
}

func TestListScopesByUser(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	s.Add(ctx, "tenantA", "user1", 1, "Item 1")
	s.Add(ctx, "tenantA", "user2", 2, "Item 2")

	all, _ := s.List(ctx, "tenantA", "")
	if len(all) != 2 {
		t.Errorf("empty userID should list across all users, got %d", len(all))
	}
	scoped, _ := s.List(ctx, "tenantA", "user1")
	if len(scoped) != 1 || scoped[0].ItemID != 1 {
		t.Errorf("user-scoped list = %+v, want only item 1", scoped)
	}
}

func TestRemove(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	s.Add(ctx, "tenantA", "user1", 42, "Rune scimitar")
	if err := s.Remove(ctx, "tenantA", "user1", 42); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	rows, _ := s.List(ctx, "tenantA", "user1")
	if len(rows) != 0 {
		t.Errorf("expected empty list after Remove, got %+v", rows)
	}
}
