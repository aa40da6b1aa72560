package rating

// Tier is the colour bucket for a vote average.
type Tier string

const (
	TierHigh Tier = "high"
	TierMid  Tier = "mid"
	TierLow  Tier = "low"
)

// TierFor buckets a vote. Lower bounds are inclusive: 8 is high, 5 is mid.
func TierFor(vote float64) Tier {
	switch {
	case vote >= 8:
		return TierHigh
	case vote >= 5:
		return TierMid
	default:
		return TierLow
	}
}
