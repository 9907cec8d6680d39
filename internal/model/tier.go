package model

// PriorityTier classifies a composite behavioral score into a follow-up
// priority bucket. Tiers are strictly ordered: COLD < WARM < HOT <
// SUPER_HOT < CRITICAL.
type PriorityTier string

const (
	TierCold     PriorityTier = "COLD"
	TierWarm     PriorityTier = "WARM"
	TierHot      PriorityTier = "HOT"
	TierSuperHot PriorityTier = "SUPER_HOT"
	TierCritical PriorityTier = "CRITICAL"
)

// tierRank maps each tier to its position in the ordering.
var tierRank = map[PriorityTier]int{
	TierCold:     0,
	TierWarm:     1,
	TierHot:      2,
	TierSuperHot: 3,
	TierCritical: 4,
}

// Rank returns the tier's position in the ordering (COLD=0 .. CRITICAL=4).
// Unknown values rank as COLD.
func (t PriorityTier) Rank() int {
	return tierRank[t]
}

// AtLeast reports whether t is at or above the given tier.
func (t PriorityTier) AtLeast(other PriorityTier) bool {
	return t.Rank() >= other.Rank()
}

// Valid reports whether t is one of the known tiers.
func (t PriorityTier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}
