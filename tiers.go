package magstand

import "math/rand/v2"

// TierAssigner decides the membership tier of newly-ingested posts that do
// not declare one. Draws are independent per post: 10% public, 30%
// login-required, 60% premium. The split is statistical, not normalized over
// the batch, so small batches may deviate from the exact percentages.
type TierAssigner struct {
	// rand returns a value in [0, 1). Injectable for deterministic tests.
	rand func() float64
}

// NewTierAssigner returns an assigner using the default random source.
func NewTierAssigner() *TierAssigner {
	return &TierAssigner{rand: rand.Float64}
}

// Assign fills in the membership tier for every post still carrying
// TierUnassigned. Posts that already declare a tier are never overridden.
// The slice is modified in place and returned for convenience.
func (a *TierAssigner) Assign(posts []Post) []Post {
	for i := range posts {
		if posts[i].MembershipLevel != TierUnassigned {
			continue
		}
		r := a.rand()
		switch {
		case r < 0.1:
			posts[i].MembershipLevel = TierPublic
		case r < 0.4:
			posts[i].MembershipLevel = TierLogin
		default:
			posts[i].MembershipLevel = TierPremium
		}
	}
	return posts
}
