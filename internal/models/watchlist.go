package models

// Watchlist is a per-tenant (optionally per-user) pin on an item, grounded on
// original_source/discord-bot/cogs/watchlist.py. Unique per
// (TenantID, UserID, ItemID).
type Watchlist struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	TenantID string `gorm:"column:tenant_id;index:idx_watchlist_unique,unique"`
	UserID   string `gorm:"column:user_id;index:idx_watchlist_unique,unique"`
	ItemID   ItemID `gorm:"column:item_id;index:idx_watchlist_unique,unique"`
	ItemName string `gorm:"column:item_name"`
}

func (Watchlist) TableName() string { return "watchlists" }
