package models

import "testing"

func TestTierOfBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{-5, "iron"},
		{0, "iron"},
		{10, "iron"},
		{11, "copper"},
		{20, "copper"},
		{21, "bronze"},
		{50, "gold"},
		{51, "platinum"},
		{90, "emerald"},
		{91, "diamond"},
		{100, "diamond"},
		{150, "diamond"},
	}
	for _, c := range cases {
		got := TierOf(c.score)
		if got.Name != c.want {
			t.Errorf("TierOf(%v) = %q, want %q", c.score, got.Name, c.want)
		}
	}
}

func TestTierOfCoversWholeDomain(t *testing.T) {
	for s := 0; s <= 100; s++ {
		got := TierOf(float64(s))
		if s < got.MinScore || s > got.MaxScore {
			t.Errorf("TierOf(%d) = %q [%d,%d] does not contain %d", s, got.Name, got.MinScore, got.MaxScore, s)
		}
	}
}

func TestTierByName(t *testing.T) {
	if _, ok := TierByName("diamond"); !ok {
		t.Fatal("expected diamond to be known")
	}
	if _, ok := TierByName("unobtainium"); ok {
		t.Fatal("expected unobtainium to be unknown")
	}
}

func TestTierOrderMonotonic(t *testing.T) {
	prev := -1
	for _, t2 := range Tiers {
		o := TierOrder(t2.Name)
		if o <= prev {
			t.Errorf("tier %q order %d not strictly greater than previous %d", t2.Name, o, prev)
		}
		prev = o
	}
}

func TestTierOrderUnknownSortsLowest(t *testing.T) {
	if TierOrder("nonexistent") >= TierOrder("iron") {
		t.Error("unknown tier should sort below every known tier")
	}
}

func TestKnownTierNamesCount(t *testing.T) {
	names := KnownTierNames()
	if len(names) != len(Tiers) {
		t.Fatalf("got %d names, want %d", len(names), len(Tiers))
	}
}
