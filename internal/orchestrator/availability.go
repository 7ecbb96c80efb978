package orchestrator

import "time"

// MinimumAvailability values spec.md §3 defines for a collection item.
const (
	AvailabilityAnnounced = "announced"
	AvailabilityInCinemas = "inCinemas"
	AvailabilityReleased  = "released"
)

// AvailabilityInput bundles the release-date fields §4.10's
// minimum-availability gate consults, falling back to a year-based
// estimate when a TMDB fetch is unavailable (the spec's "or TMDB fetch +
// year-based fallback").
type AvailabilityInput struct {
	Year            int
	InCinemas       time.Time
	DigitalRelease  time.Time
	PhysicalRelease time.Time
	Now             time.Time
}

// MeetsMinimumAvailability implements §4.10's gate: items in the
// `status=requested` missing cycle are skipped until their threshold is
// met. "announced" always passes (no gate); "inCinemas" requires an
// in-cinemas date that has passed, or a year-based fallback once the
// current year has reached the item's year; "released" additionally
// requires a digital or physical release date to have passed.
func MeetsMinimumAvailability(threshold string, in AvailabilityInput) bool {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	switch threshold {
	case AvailabilityAnnounced, "":
		return true
	case AvailabilityInCinemas:
		if !in.InCinemas.IsZero() {
			return !now.Before(in.InCinemas)
		}
		return in.Year > 0 && now.Year() >= in.Year
	case AvailabilityReleased:
		if !in.DigitalRelease.IsZero() && !now.Before(in.DigitalRelease) {
			return true
		}
		if !in.PhysicalRelease.IsZero() && !now.Before(in.PhysicalRelease) {
			return true
		}
		if in.DigitalRelease.IsZero() && in.PhysicalRelease.IsZero() {
			// No TMDB release-date data at all: fall back to "a year
			// has passed since theatrical/announced year", matching
			// the spec's year-based fallback for missing TMDB data.
			return in.Year > 0 && now.Year() > in.Year
		}
		return false
	default:
		return true
	}
}
