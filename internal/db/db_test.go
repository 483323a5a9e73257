package db

import (
	"testing"
	"time"

	"marketwatch/internal/config"
)

func openMemDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(config.DBConfig{Path: ":memory:", MaxOpenConns: 5, MaxIdleConns: 2,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 10 * time.Minute})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return d
}

func TestOpenFallsBackToSQLiteWithoutURL(t *testing.T) {
	d := openMemDB(t)
	defer Close(d)
	if d.Gorm.Dialector.Name() != "sqlite" {
		t.Errorf("dialector = %q, want sqlite when db.url is unset", d.Gorm.Dialector.Name())
	}
}

func TestPingSucceedsOnOpenConnection(t *testing.T) {
	d := openMemDB(t)
	defer Close(d)
	if err := Ping(d); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestPingNilDBIsNoop(t *testing.T) {
	if err := Ping(nil); err != nil {
		t.Errorf("Ping(nil) = %v, want nil", err)
	}
}

func TestAutoMigrateThenSeedTiers(t *testing.T) {
	d := openMemDB(t)
	defer Close(d)
	if err := AutoMigrate(d); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if err := SeedTiers(d); err != nil {
		t.Fatalf("SeedTiers: %v", err)
	}
	var count int64
	if err := d.Gorm.Table("tiers").Count(&count).Error; err != nil {
		t.Fatalf("count tiers: %v", err)
	}
	if count == 0 {
		t.Error("expected the tier table to be seeded")
	}
}

func TestSetTimezoneNoopOnSQLite(t *testing.T) {
	d := openMemDB(t)
	defer Close(d)
	if err := SetTimezone(d, "UTC"); err != nil {
		t.Errorf("SetTimezone on sqlite should be a no-op, got %v", err)
	}
}

func TestCloseNilDBIsNoop(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) = %v, want nil", err)
	}
}
