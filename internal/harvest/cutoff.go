package harvest

import (
	"log/slog"
	"time"
	_ "time/tzdata"
)

// CopyrightYears is the age after which a publication is assumed to be out
// of copyright
const CopyrightYears = 141

// Location is the time zone used for the current year and archive dates
const Location = "Europe/Copenhagen"

// EffectiveCutoff clamps the configured cutoff to currentYear - CopyrightYears
func EffectiveCutoff(configured, currentYear int) int {
	return min(configured, currentYear-CopyrightYears)
}

// LocalTime returns t in the harvest time zone
func LocalTime(t time.Time) time.Time {
	loc, err := time.LoadLocation(Location)
	if err != nil {
		slog.Warn("Failed to load time zone, using local time", "zone", Location, "err", err)
		return t
	}
	return t.In(loc)
}

// CurrentYear returns the year of t in the harvest time zone
func CurrentYear(t time.Time) int {
	return LocalTime(t).Year()
}
