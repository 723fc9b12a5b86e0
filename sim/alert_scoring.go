package sim

import "math"

// DensityField samples crowd density at a position. The analytics engine's
// published grid implements it; a nil field scores the crowd term from the
// ambient global sample instead.
type DensityField interface {
	DensityAt(pos Coordinate) float64
}

// AlertContext is the per-tick context alerts are scored against.
type AlertContext struct {
	Now             Tick
	WeatherSeverity float64 // [0,1]
	CrowdDensity    float64 // [0,1] global fallback sample
	VIPPositions    []Coordinate
	Density         DensityField // optional per-location field
}

// crowdAt returns the density sample for a position, preferring the field.
func (ctx AlertContext) crowdAt(pos Coordinate) float64 {
	if ctx.Density != nil {
		return clamp01(ctx.Density.DensityAt(pos))
	}
	return clamp01(ctx.CrowdDensity)
}

// AlertScorer computes a priority score for an alert. Higher scores are
// more urgent. Implementations MUST NOT modify the alert — only the return
// value is used.
type AlertScorer interface {
	Score(a *Alert, ctx AlertContext) float64
}

// TierAgingScorer is the default scoring policy.
//
// Formula: baseWeight(tier) + CrowdWeight*density(location)
//   - VIPBonus (if any VIP within VIPRadius)
//   - WeatherWeight*weatherSeverity
//   - min(AgeCap, AgeWeight * age * agingFactor(tier))
//
// all terms additive. Base weight dominates the context terms, so tier
// ordering holds between fresh alerts. The age term is monotonically
// non-decreasing in elapsed time and capped; its per-tier factor grows as
// urgency falls (critical alerts never age — they are already maximal),
// which lets a perpetually open low-tier alert overtake a fresh or static
// higher-tier one instead of starving. With the defaults, a low alert
// crosses a fresh critical one after roughly 120 ticks of inattention.
type TierAgingScorer struct {
	CrowdWeight   float64
	VIPBonus      float64
	VIPRadius     float64
	WeatherWeight float64
	AgeWeight     float64
	AgeCap        float64
}

// NewTierAgingScorer returns a TierAgingScorer with the default weights.
func NewTierAgingScorer() *TierAgingScorer {
	return &TierAgingScorer{
		CrowdWeight:   10.0,
		VIPBonus:      15.0,
		VIPRadius:     0.05,
		WeatherWeight: 5.0,
		AgeWeight:     0.5,
		AgeCap:        80.0,
	}
}

// tierBaseWeight is the dominant additive term per severity tier.
var tierBaseWeight = map[SeverityTier]float64{
	TierCritical:      100.0,
	TierHigh:          80.0,
	TierMedium:        60.0,
	TierLow:           40.0,
	TierInformational: 20.0,
}

// tierAgingFactor scales the age term per tier. Less urgent tiers age
// faster so they escalate instead of starving.
var tierAgingFactor = map[SeverityTier]float64{
	TierCritical:      0.0,
	TierHigh:          0.25,
	TierMedium:        0.5,
	TierLow:           1.0,
	TierInformational: 1.5,
}

func (s *TierAgingScorer) Score(a *Alert, ctx AlertContext) float64 {
	score := tierBaseWeight[a.Tier]
	score += s.CrowdWeight * ctx.crowdAt(a.Position)
	if s.nearVIP(a.Position, ctx.VIPPositions) {
		score += s.VIPBonus
	}
	score += s.WeatherWeight * clamp01(ctx.WeatherSeverity)

	age := float64(ctx.Now - a.Created)
	if age > 0 {
		score += math.Min(s.AgeCap, s.AgeWeight*age*tierAgingFactor[a.Tier])
	}
	return score
}

func (s *TierAgingScorer) nearVIP(pos Coordinate, vips []Coordinate) bool {
	for _, v := range vips {
		if pos.DistanceTo(v) <= s.VIPRadius {
			return true
		}
	}
	return false
}
