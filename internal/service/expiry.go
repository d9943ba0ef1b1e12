package service

import "time"

// ComputeExpiry returns the instant a hold placed at now lapses.
func ComputeExpiry(now time.Time, holdMinutes int) time.Time {
	return now.Add(time.Duration(holdMinutes) * time.Minute)
}

// IsExpired reports whether a hold with the given expiry has lapsed at now.
// The boundary instant counts as expired.
func IsExpired(holdExpiry, now time.Time) bool {
	return !holdExpiry.After(now)
}

func validateHoldMinutes(minutes, max int) error {
	if minutes <= 0 || minutes > max {
		return validation("hold_minutes must be between 1 and %d", max)
	}
	return nil
}
