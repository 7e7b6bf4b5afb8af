package magstand

import "testing"

// sequencedAssigner returns a TierAssigner whose draws come from a fixed
// sequence instead of the RNG.
func sequencedAssigner(draws ...float64) *TierAssigner {
	i := 0
	return &TierAssigner{rand: func() float64 {
		d := draws[i%len(draws)]
		i++
		return d
	}}
}

func TestAssignTierBoundaries(t *testing.T) {
	cases := []struct {
		draw float64
		want int
	}{
		{0.0, TierPublic},
		{0.09, TierPublic},
		{0.1, TierLogin},
		{0.39, TierLogin},
		{0.4, TierPremium},
		{0.99, TierPremium},
	}
	for _, tc := range cases {
		a := sequencedAssigner(tc.draw)
		posts := a.Assign([]Post{{ID: 1, MembershipLevel: TierUnassigned}})
		if posts[0].MembershipLevel != tc.want {
			t.Errorf("draw %.2f: tier = %d, want %d", tc.draw, posts[0].MembershipLevel, tc.want)
		}
	}
}

func TestAssignNeverOverridesDeclaredTier(t *testing.T) {
	a := sequencedAssigner(0.99) // would draw premium
	posts := a.Assign([]Post{
		{ID: 1, MembershipLevel: TierPublic},
		{ID: 2, MembershipLevel: TierLogin},
		{ID: 3, MembershipLevel: TierUnassigned},
	})
	if posts[0].MembershipLevel != TierPublic {
		t.Errorf("declared public tier overridden to %d", posts[0].MembershipLevel)
	}
	if posts[1].MembershipLevel != TierLogin {
		t.Errorf("declared login tier overridden to %d", posts[1].MembershipLevel)
	}
	if posts[2].MembershipLevel != TierPremium {
		t.Errorf("unassigned tier = %d, want premium draw", posts[2].MembershipLevel)
	}
}

func TestAssignDistributionRoughly(t *testing.T) {
	a := NewTierAssigner()
	posts := make([]Post, 10000)
	for i := range posts {
		posts[i].MembershipLevel = TierUnassigned
	}
	a.Assign(posts)

	counts := map[int]int{}
	for _, p := range posts {
		counts[p.MembershipLevel]++
	}
	// Draws are independent, so allow generous slack around 10/30/60.
	if counts[TierPublic] < 500 || counts[TierPublic] > 1500 {
		t.Errorf("public count = %d, want ~1000", counts[TierPublic])
	}
	if counts[TierLogin] < 2400 || counts[TierLogin] > 3600 {
		t.Errorf("login count = %d, want ~3000", counts[TierLogin])
	}
	if counts[TierPremium] < 5400 || counts[TierPremium] > 6600 {
		t.Errorf("premium count = %d, want ~6000", counts[TierPremium])
	}
}
