package db

import (
	"marketwatch/internal/models"
)

// AutoMigrate creates/updates the persisted tables: the prices, watchlists
// and tiers tables spec.md §6 names (tiers seeded separately, see
// SeedTiers), plus tenant_config_audit for AuditEntry.
func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Snapshot{},
		&models.Tier{},
		&models.Watchlist{},
		&models.AuditEntry{},
	)
}

// SeedTiers upserts the canonical ten-tier table on startup; it is
// idempotent and safe to run on every boot.
func SeedTiers(db *DB) error {
	if db == nil || db.Gorm == nil {
		return nil
	}
	for _, t := range models.Tiers {
		if err := db.Gorm.Save(&t).Error; err != nil {
			return err
		}
	}
	return nil
}
