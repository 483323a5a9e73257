package tenant

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeedFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSeedFileParsesTenants(t *testing.T) {
	path := writeSeedFile(t, `
tenants:
  - tenant_id: "12345678901234567"
    channels:
      dumps: "chan-1"
  - tenant_id: "98765432109876543"
`)
	tenants, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if len(tenants) != 2 {
		t.Fatalf("len(tenants) = %d, want 2", len(tenants))
	}
	if tenants[0].TenantID != "12345678901234567" {
		t.Errorf("tenants[0].TenantID = %q", tenants[0].TenantID)
	}
	if tenants[0].Channels["dumps"] != "chan-1" {
		t.Errorf("tenants[0].Channels[dumps] = %q, want chan-1", tenants[0].Channels["dumps"])
	}
}

func TestLoadSeedFileMissingIsAnError(t *testing.T) {
	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing seed file")
	}
}

func TestSeedFromFileSkipsMissingPath(t *testing.T) {
	s := New(t.TempDir(), true, nil)
	if err := s.SeedFromFile("", nil); err != nil {
		t.Errorf("SeedFromFile(\"\") should be a no-op, got %v", err)
	}
	if err := s.SeedFromFile(filepath.Join(t.TempDir(), "missing.yaml"), nil); err != nil {
		t.Errorf("SeedFromFile on a missing file should be a no-op, got %v", err)
	}
}

func TestSeedFromFilePopulatesStoreWithoutClobberingExisting(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, true, nil)

	existing, err := s.Get("12345678901234567")
	if err != nil {
		t.Fatal(err)
	}
	existing.Channels["dumps"] = "already-configured"
	if err := s.Put("12345678901234567", existing); err != nil {
		t.Fatal(err)
	}

	seedPath := writeSeedFile(t, `
tenants:
  - tenant_id: "12345678901234567"
    channels:
      dumps: "from-seed"
  - tenant_id: "98765432109876543"
    channels:
      dumps: "from-seed-2"
`)
	if err := s.SeedFromFile(seedPath, nil); err != nil {
		t.Fatalf("SeedFromFile: %v", err)
	}

	unchanged, err := s.Get("12345678901234567")
	if err != nil {
		t.Fatal(err)
	}
	if unchanged.Channels["dumps"] != "already-configured" {
		t.Errorf("seeding must not overwrite an existing tenant, got %q", unchanged.Channels["dumps"])
	}

	seeded, err := s.Get("98765432109876543")
	if err != nil {
		t.Fatal(err)
	}
	if seeded.Channels["dumps"] != "from-seed-2" {
		t.Errorf("seeded tenant channels[dumps] = %q, want from-seed-2", seeded.Channels["dumps"])
	}
}
