package audit

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
	if err := db.AutoMigrate(&models.AuditEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestRecordThenHistory(t *testing.T) {
	r := New(openTestDB(t), nil)
	ctx := context.Background()
	cfg := models.DefaultTenantConfig("tenantA", "super-secret-token")
	r.Record(ctx, "tenantA", "put_config", cfg)

	rows, err := r.History(ctx, "tenantA", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Action != "put_config" {
		t.Errorf("Action = %q, want put_config", rows[0].Action)
	}
	if string(rows[0].Snapshot) == "" {
		t.Error("snapshot should not be empty")
	}
	if containsToken(string(rows[0].Snapshot), "super-secret-token") {
		t.Error("admin token must be redacted from the stored snapshot")
	}
}

func containsToken(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestHistoryOrdersNewestFirst(t *testing.T) {
	r := New(openTestDB(t), nil)
	ctx := context.Background()
	cfg := models.DefaultTenantConfig("tenantA", "tok")
	r.Record(ctx, "tenantA", "put_config", cfg)
	r.Record(ctx, "tenantA", "ban", cfg)

	rows, err := r.History(ctx, "tenantA", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Action != "ban" {
		t.Errorf("expected newest-first order, got %q first", rows[0].Action)
	}
}

func TestHistoryScopesByTenant(t *testing.T) {
	r := New(openTestDB(t), nil)
	ctx := context.Background()
	r.Record(ctx, "tenantA", "put_config", models.DefaultTenantConfig("tenantA", "tok"))
	r.Record(ctx, "tenantB", "put_config", models.DefaultTenantConfig("tenantB", "tok"))

	rows, err := r.History(ctx, "tenantA", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 1 || rows[0].TenantID != "tenantA" {
		t.Errorf("History leaked rows across tenants: %+v", rows)
	}
}

func TestRecordOnNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Record(context.Background(), "tenantA", "put_config", models.DefaultTenantConfig("tenantA", "tok")) // must not panic
}

func TestHistoryRespectsLimit(t *testing.T) {
	r := New(openTestDB(t), nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		r.Record(ctx, "tenantA", "put_config", models.DefaultTenantConfig("tenantA", "tok"))
	}
	rows, err := r.History(ctx, "tenantA", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2 (limit)", len(rows))
	}
}
