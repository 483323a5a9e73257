// Package watchlist implements the watchlist feature: per-tenant (optionally
// per-user) pins on items. Named in spec.md's data model but never wired to
// an operation; grounded on original_source/discord-bot/cogs/watchlist.py
// and stored via the same gorm handle as the time-series store, using the
// teacher's upsert-via-OnConflict idiom for idempotent Add.
package watchlist

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketwatch/internal/models"
)

var ErrStoreFailure = errors.New("watchlist: store failure")

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Add pins an item for a tenant/user, upserting the item name on conflict
// so re-adding an already-watched item just refreshes its display name.
func (s *Store) Add(ctx context.Context, tenantID, userID string, itemID models.ItemID, itemName string) error {
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	row := models.Watchlist{TenantID: tenantID, UserID: userID, ItemID: itemID, ItemName: itemName}
	err := s.db.WithContext(tctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "user_id"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"item_name"}),
	}).Create(&row).Error
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

// Remove unpins an item.
func (s *Store) Remove(ctx context.Context, tenantID, userID string, itemID models.ItemID) error {
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.db.WithContext(tctx).
		Where("tenant_id = ? AND user_id = ? AND item_id = ?", tenantID, userID, itemID).
		Delete(&models.Watchlist{}).Error
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

// List returns every watched item for a tenant, optionally scoped to one
// user (empty userID lists across all users).
func (s *Store) List(ctx context.Context, tenantID, userID string) ([]models.Watchlist, error) {
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	q := s.db.WithContext(tctx).Where("tenant_id = ?", tenantID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var rows []models.Watchlist
	if err := q.Order("item_name ASC").Find(&rows).Error; err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return rows, nil
}
