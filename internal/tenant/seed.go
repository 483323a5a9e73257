package tenant

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"marketwatch/internal/models"
)

// seedDocument is the on-disk shape of a tenant bootstrap seed file: a plain
// YAML list of tenant configs, keyed by nothing but TenantID (the field the
// documents themselves carry). Kept as its own type, distinct from the JSON
// wire format Store persists, so a hand-edited seed file can omit any field
// a JSON round-trip would otherwise require.
type seedDocument struct {
	Tenants []yaml.Node `yaml:"tenants"`
}

// LoadSeedFile parses a YAML tenant bootstrap seed document. Operators hand-
// edit this file directly (it is not the on-disk store format, which is one
// JSON document per tenant per spec.md §4.F); YAML is used here rather than
// JSON because the seed file is meant to be readable and commentable, unlike
// the machine-written per-tenant documents. Each entry is decoded over
// DefaultTenantConfig, so fields an entry omits keep their default values.
func LoadSeedFile(path string) ([]models.TenantConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc seedDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("tenant: parsing seed file %s: %w", path, err)
	}
	out := make([]models.TenantConfig, 0, len(doc.Tenants))
	for i := range doc.Tenants {
		cfg := models.DefaultTenantConfig("", "")
		if err := doc.Tenants[i].Decode(&cfg); err != nil {
			return nil, fmt.Errorf("tenant: parsing seed file %s: %w", path, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// SeedFromFile loads path and Puts every tenant it names into s, skipping
// (and logging) any tenant that already has a persisted config so that a
// seed file replayed against a live store never clobbers operator edits.
// Missing files are not an error: an unconfigured seed path just means the
// store starts empty, same as LoadFromDisk elsewhere in this codebase.
func (s *Store) SeedFromFile(path string, logger *zap.Logger) error {
	if path == "" {
		return nil
	}
	seeds, err := LoadSeedFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, cfg := range seeds {
		if err := ValidateTenantID(cfg.TenantID); err != nil {
			if logger != nil {
				logger.Warn("tenant: skipping seed entry with invalid tenant_id", zap.String("tenant_id", cfg.TenantID), zap.Error(err))
			}
			continue
		}
		if _, ok, err := func() (models.TenantConfig, bool, error) {
			lock := s.lockFor(cfg.TenantID)
			lock.RLock()
			defer lock.RUnlock()
			return s.readLocked(cfg.TenantID)
		}(); err != nil {
			return err
		} else if ok {
			continue
		}
		if err := s.Put(cfg.TenantID, cfg); err != nil {
			if logger != nil {
				logger.Warn("tenant: skipping invalid seed entry", zap.String("tenant_id", cfg.TenantID), zap.Error(err))
			}
			continue
		}
		if logger != nil {
			logger.Info("tenant: seeded config from bootstrap file", zap.String("tenant_id", cfg.TenantID))
		}
	}
	return nil
}
