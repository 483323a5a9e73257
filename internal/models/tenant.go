package models

// ChannelKind names a recognized tenant channel slot. Values are external
// chat-platform channel identifiers.
type ChannelKind string

const (
	ChannelCheapFlips       ChannelKind = "cheap_flips"
	ChannelMediumFlips      ChannelKind = "medium_flips"
	ChannelExpensiveFlips   ChannelKind = "expensive_flips"
	ChannelBillionaireFlips ChannelKind = "billionaire_flips"
	ChannelRecipeItems      ChannelKind = "recipe_items"
	ChannelHighAlchMargins  ChannelKind = "high_alch_margins"
	ChannelHighLimitItems   ChannelKind = "high_limit_items"
	ChannelDumps            ChannelKind = "dumps"
	ChannelSpikes           ChannelKind = "spikes"
	ChannelFlips            ChannelKind = "flips"
)

// KnownChannelKinds lists every recognized channel-kind key, used by config
// validation to reject unknown keys outright (fail closed).
func KnownChannelKinds() []ChannelKind {
	return []ChannelKind{
		ChannelCheapFlips, ChannelMediumFlips, ChannelExpensiveFlips, ChannelBillionaireFlips,
		ChannelRecipeItems, ChannelHighAlchMargins, ChannelHighLimitItems,
		ChannelDumps, ChannelSpikes, ChannelFlips,
	}
}

// RoleKind names a recognized tenant role slot.
type RoleKind string

const (
	RoleRiskLow      RoleKind = "risk_low"
	RoleRiskMedium   RoleKind = "risk_medium"
	RoleRiskHigh     RoleKind = "risk_high"
	RoleRiskVeryHigh RoleKind = "risk_very_high"
	RoleQualityDeal  RoleKind = "quality_deal"
	RoleQualityGood  RoleKind = "quality_good"
	RoleQualityPremium RoleKind = "quality_premium"
	RoleQualityElite RoleKind = "quality_elite"
	RoleQualityGod   RoleKind = "quality_god_tier"
	RoleQualityNuclear RoleKind = "quality_nuclear"
	RoleEventDump    RoleKind = "event_dump"
	RoleEventSpike   RoleKind = "event_spike"
	RoleEventFlip    RoleKind = "event_flip"
)

// KnownRoleKinds lists every recognized role-kind key.
func KnownRoleKinds() []RoleKind {
	return []RoleKind{
		RoleRiskLow, RoleRiskMedium, RoleRiskHigh, RoleRiskVeryHigh,
		RoleQualityDeal, RoleQualityGood, RoleQualityPremium, RoleQualityElite, RoleQualityGod, RoleQualityNuclear,
		RoleEventDump, RoleEventSpike, RoleEventFlip,
	}
}

// EventRoleKind returns the RoleKind a mention union pulls in for every
// alert of the given event kind, regardless of tier/risk/quality.
func EventRoleKind(k EventKind) RoleKind {
	return RoleKind("event_" + string(k))
}

// TierRoleSetting is the per-tier role/enablement pair a tenant can set.
type TierRoleSetting struct {
	RoleID  string `json:"role_id,omitempty" yaml:"role_id,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// AlertThresholds gates which events are eligible for delivery to a tenant.
type AlertThresholds struct {
	MinMarginGP          int64    `json:"min_margin_gp" yaml:"min_margin_gp"`
	MinScore             float64  `json:"min_score" yaml:"min_score"`
	EnabledTiers         []string `json:"enabled_tiers" yaml:"enabled_tiers"`
	MaxAlertsPerInterval int      `json:"max_alerts_per_interval" yaml:"max_alerts_per_interval"`
}

// TiersAllowed reports whether tier is permitted by this threshold set. An
// empty EnabledTiers allows every tier (per the stated invariant).
func (a AlertThresholds) TiersAllowed(tier string) bool {
	if len(a.EnabledTiers) == 0 {
		return true
	}
	for _, t := range a.EnabledTiers {
		if t == tier {
			return true
		}
	}
	return false
}

// PriceBrackets classifies a flip/dump's price into a channel kind.
type PriceBrackets struct {
	CheapMax      int64 `json:"cheap_max" yaml:"cheap_max"`
	MediumMax     int64 `json:"medium_max" yaml:"medium_max"`
	ExpensiveMax  int64 `json:"expensive_max" yaml:"expensive_max"`
}

// TenantConfig is the per-tenant JSON document described in spec §3/§4.F.
// Also the shape a YAML tenant bootstrap seed document (internal/tenant's
// SeedFromFile) unmarshals into, hence the parallel yaml tags below.
type TenantConfig struct {
	TenantID   string `json:"tenant_id" yaml:"tenant_id"`
	AdminToken string `json:"admin_token" yaml:"admin_token,omitempty"`
	// WebhookURL is the one chat-platform webhook this tenant posts through.
	// Every alert is posted to this URL as given, whichever Channels entry it
	// was routed to; channel identifiers are not added to the URL.
	WebhookURL      string                     `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	Channels        map[ChannelKind]string     `json:"channels" yaml:"channels,omitempty"`
	Roles           map[RoleKind]string        `json:"roles" yaml:"roles,omitempty"`
	TierRoles       map[string]TierRoleSetting `json:"tier_roles" yaml:"tier_roles,omitempty"`
	MinTierName     string                     `json:"min_tier_name,omitempty" yaml:"min_tier_name,omitempty"`
	AlertThresholds AlertThresholds            `json:"alert_thresholds" yaml:"alert_thresholds,omitempty"`
	PriceBrackets   PriceBrackets              `json:"price_brackets" yaml:"price_brackets,omitempty"`
	Banned          bool                       `json:"banned" yaml:"banned,omitempty"`
}

// DefaultTenantConfig returns the secure-by-default document created lazily
// on first reference, per §3's lifecycle note.
func DefaultTenantConfig(tenantID, adminToken string) TenantConfig {
	return TenantConfig{
		TenantID:   tenantID,
		AdminToken: adminToken,
		Channels:   map[ChannelKind]string{},
		Roles:      map[RoleKind]string{},
		TierRoles:  map[string]TierRoleSetting{},
		AlertThresholds: AlertThresholds{
			MinMarginGP:          0,
			MinScore:             0,
			EnabledTiers:         nil,
			MaxAlertsPerInterval: 5,
		},
		PriceBrackets: PriceBrackets{
			CheapMax:     100_000,
			MediumMax:    1_000_000,
			ExpensiveMax: 100_000_000,
		},
		Banned: false,
	}
}
