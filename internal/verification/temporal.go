package verification

import "time"

// TemporalPlausibility scores how plausible the occurrence time is
// relative to the submission time. Fresher reports are more verifiable and
// less subject to memory drift; future timestamps are always invalid.
//
// The score steps down with age: 1.0 within a day, 0.8 within three days,
// 0.6 within a week, 0.4 beyond that, 0.0 for the future.
func TemporalPlausibility(occurredAt, now time.Time) float64 {
	if occurredAt.After(now) {
		return 0.0
	}

	age := now.Sub(occurredAt)
	switch {
	case age <= 24*time.Hour:
		return 1.0
	case age <= 72*time.Hour:
		return 0.8
	case age <= 7*24*time.Hour:
		return 0.6
	default:
		return 0.4
	}
}
