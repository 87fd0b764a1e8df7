// Package trust derives a reporter's long-run credibility from their
// review history. The score is always recomputed from the raw counters,
// never nudged incrementally, so it is reproducible from the counters
// alone and immune to rounding drift.
package trust

// Neutral is the trust score for reporters with no history, and the
// fallback input for anonymous reports.
const Neutral = 0.5

// volumeSaturation is the submission count at which the evidence-based
// score fully displaces the neutral prior.
const volumeSaturation = 20.0

// Recompute returns the trust score implied by a reporter's counters.
//
// The verified rate maps onto [0.2, 1.0], rejections subtract up to 0.3,
// and the result is blended with the neutral prior in proportion to how
// few reports the reporter has: one submission stays anchored near 0.5,
// twenty or more are governed entirely by the track record.
func Recompute(submitted, verified, rejected int) float64 {
	if submitted == 0 {
		return Neutral
	}

	verifiedRate := float64(verified) / float64(submitted)
	rejectedRate := float64(rejected) / float64(submitted)

	volumeWeight := float64(submitted) / volumeSaturation
	if volumeWeight > 1.0 {
		volumeWeight = 1.0
	}

	base := verifiedRate*0.8 + 0.2
	penalty := rejectedRate * 0.3

	score := (base-penalty)*volumeWeight + Neutral*(1-volumeWeight)
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
