package handler

import (
	"testing"

	"marketwatch/internal/models"
)

func TestFilterDumpsForTenantNoFilterReturnsAll(t *testing.T) {
	dumps := []models.DumpEvent{{ItemID: 1, Tier: "bronze"}, {ItemID: 2, Tier: "diamond"}}
	got := filterDumpsForTenant(dumps, nil, "")
	if len(got) != 2 {
		t.Errorf("got %d dumps, want 2 (no filter configured)", len(got))
	}
}

func TestFilterDumpsForTenantEnabledTiers(t *testing.T) {
	dumps := []models.DumpEvent{{ItemID: 1, Tier: "bronze"}, {ItemID: 2, Tier: "diamond"}}
	got := filterDumpsForTenant(dumps, []string{"diamond"}, "")
	if len(got) != 1 || got[0].ItemID != 2 {
		t.Errorf("got %+v, want only the diamond-tier dump", got)
	}
}

func TestFilterDumpsForTenantMinTier(t *testing.T) {
	dumps := []models.DumpEvent{
		{ItemID: 1, Tier: "iron"},
		{ItemID: 2, Tier: "gold"},
		{ItemID: 3, Tier: "diamond"},
	}
	got := filterDumpsForTenant(dumps, nil, "gold")
	if len(got) != 2 {
		t.Fatalf("got %d dumps, want 2 (gold and diamond)", len(got))
	}
	for _, d := range got {
		if d.Tier == "iron" {
			t.Error("iron-tier dump should have been filtered out by min_tier=gold")
		}
	}
}

func TestFilterDumpsForTenantCombinesBothFilters(t *testing.T) {
	dumps := []models.DumpEvent{
		{ItemID: 1, Tier: "bronze"},
		{ItemID: 2, Tier: "gold"},
		{ItemID: 3, Tier: "diamond"},
	}
	got := filterDumpsForTenant(dumps, []string{"gold", "diamond"}, "diamond")
	if len(got) != 1 || got[0].Tier != "diamond" {
		t.Errorf("got %+v, want only diamond (enabled_tiers ∩ min_tier)", got)
	}
}

func TestTierSettingsForNilStoreReturnsEmpty(t *testing.T) {
	tiers, minTier := tierSettingsFor(nil, "tenantA")
	if tiers != nil || minTier != "" {
		t.Errorf("expected zero values for a nil tenant store, got %v, %q", tiers, minTier)
	}
}

func TestTierSettingsForEmptyGuildReturnsEmpty(t *testing.T) {
	tiers, minTier := tierSettingsFor(nil, "")
	if tiers != nil || minTier != "" {
		t.Errorf("expected zero values for an empty guild id, got %v, %q", tiers, minTier)
	}
}
