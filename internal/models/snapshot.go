package models

// Snapshot is one observation of (low, high, volume) for an item at an
// upstream-reported timestamp. Low/High are nil when the upstream window had
// no trade on that side. Volume is a pointer so a missing count can be
// represented, but the scheduler always sets it: /latest reports no trade
// counts, so it takes the /5m (or, for FetchRecent, /1h) window's count, or
// 0 when the item has no window entry.
type Snapshot struct {
	ItemID    ItemID `gorm:"primaryKey;column:item_id" json:"item_id"`
	Timestamp int64  `gorm:"primaryKey;column:timestamp;index" json:"timestamp"`
	Low       *int64 `gorm:"column:low" json:"low,omitempty"`
	High      *int64 `gorm:"column:high" json:"high,omitempty"`
	Volume    *int64 `gorm:"column:volume" json:"volume,omitempty"`
}

func (Snapshot) TableName() string { return "prices" }

// HasPrices reports whether both sides of the book were populated.
func (s Snapshot) HasPrices() bool {
	return s.Low != nil && s.High != nil
}

// VolumeOrZero returns the trade-count volume, treating a missing value as 0.
func (s Snapshot) VolumeOrZero() int64 {
	if s.Volume == nil {
		return 0
	}
	return *s.Volume
}
