package models

// TierGroup partitions the ten tiers into two cosmetic bands used by the
// chat-embed color scheme.
type TierGroup string

const (
	TierGroupMetals TierGroup = "metals"
	TierGroupGems   TierGroup = "gems"
)

// Tier is one of the ten named bands partitioning the score domain [0,100].
type Tier struct {
	Name     string    `json:"name" gorm:"primaryKey;column:name"`
	Emoji    string    `json:"emoji"`
	MinScore int       `json:"min_score"`
	MaxScore int       `json:"max_score"`
	Group    TierGroup `json:"group"`
	Order    int       `json:"order" gorm:"column:tier_order"`
}

func (Tier) TableName() string { return "tiers" }

// Tiers is the canonical, seeded tier table: ten disjoint ranges covering
// [0,100], ordered low to high.
var Tiers = []Tier{
	{Name: "iron", Emoji: "🔩", MinScore: 0, MaxScore: 10, Group: TierGroupMetals, Order: 0},
	{Name: "copper", Emoji: "🪙", MinScore: 11, MaxScore: 20, Group: TierGroupMetals, Order: 1},
	{Name: "bronze", Emoji: "🏅", MinScore: 21, MaxScore: 30, Group: TierGroupMetals, Order: 2},
	{Name: "silver", Emoji: "🥈", MinScore: 31, MaxScore: 40, Group: TierGroupMetals, Order: 3},
	{Name: "gold", Emoji: "🥇", MinScore: 41, MaxScore: 50, Group: TierGroupMetals, Order: 4},
	{Name: "platinum", Emoji: "⚪", MinScore: 51, MaxScore: 60, Group: TierGroupMetals, Order: 5},
	{Name: "ruby", Emoji: "💎🔴", MinScore: 61, MaxScore: 70, Group: TierGroupGems, Order: 6},
	{Name: "sapphire", Emoji: "💎🔵", MinScore: 71, MaxScore: 80, Group: TierGroupGems, Order: 7},
	{Name: "emerald", Emoji: "💎🟢", MinScore: 81, MaxScore: 90, Group: TierGroupGems, Order: 8},
	{Name: "diamond", Emoji: "💎", MinScore: 91, MaxScore: 100, Group: TierGroupGems, Order: 9},
}

var (
	tierByName  = make(map[string]Tier, len(Tiers))
	tierOrderOf = make(map[string]int, len(Tiers))
)

func init() {
	for _, t := range Tiers {
		tierByName[t.Name] = t
		tierOrderOf[t.Name] = t.Order
	}
}

// TierOf returns the tier whose [min,max] range contains score. score is
// clamped to [0,100] first, so it always resolves to exactly one tier.
func TierOf(score float64) Tier {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	s := int(score)
	for _, t := range Tiers {
		if s >= t.MinScore && s <= t.MaxScore {
			return t
		}
	}
	// Unreachable given the ranges cover [0,100], but keep a safe fallback.
	return Tiers[0]
}

// TierByName looks up a tier by its canonical name. ok is false for unknown
// names.
func TierByName(name string) (Tier, bool) {
	t, ok := tierByName[name]
	return t, ok
}

// TierOrder returns the tier's position in the ordering, used for
// strictly-below comparisons against a tenant's min_tier_name. Unknown names
// sort below every known tier.
func TierOrder(name string) int {
	if o, ok := tierOrderOf[name]; ok {
		return o
	}
	return -1
}

// KnownTierNames lists every valid tier name, used by config validation.
func KnownTierNames() []string {
	names := make([]string, len(Tiers))
	for i, t := range Tiers {
		names[i] = t.Name
	}
	return names
}
