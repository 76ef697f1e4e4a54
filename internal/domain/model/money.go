package model

import "time"

// MinorToMajor converts a provider integer minor-unit amount (cents) into
// the major-unit decimal stored everywhere in this system.
func MinorToMajor(minor int64) float64 {
	return float64(minor) / 100
}

// MajorToMinor converts a display amount into provider minor units,
// rounding to the nearest cent.
func MajorToMinor(major float64) int64 {
	if major < 0 {
		return int64(major*100 - 0.5)
	}
	return int64(major*100 + 0.5)
}

// DateOnlyUTC converts a provider epoch-second timestamp to a calendar date
// in UTC. Source timestamps are UTC epochs, so UTC is the one consistent
// truncation policy.
func DateOnlyUTC(epoch int64) time.Time {
	t := time.Unix(epoch, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
