// Package orchestrator implements §4.10: per library item, search every
// enabled indexer, score and filter the results, select and submit the
// best candidate, then track it through completion via a background
// poller that imports successes and blocklists failures.
package orchestrator

import (
	"time"

	"github.com/datallboy/gonzb/internal/scoring"
)

// LibraryItem is one entry the orchestrator is trying to acquire, per
// spec.md §4.10's "(title, year, tmdb_id?, profile, client)".
type LibraryItem struct {
	TMDBID              string
	Title               string
	Year                int
	Categories          []string
	Profile             scoring.Profile
	MinimumAvailability string
	ReleaseDate         time.Time
	CurrentFileScore    int // for the force-upgrade path; 0 when no file is on disk yet
	ForceUpgrade        bool
}

// SearchEvent records one indexer round trip for external stats (§4.10
// step 2: "Record a search event (query, latency, success)").
type SearchEvent struct {
	Indexer string
	Query   string
	Latency time.Duration
	Success bool
}

// GrabEvent records a successful selection+submission (§4.10 step 5:
// "Record a grab event").
type GrabEvent struct {
	Indexer        string
	Title          string
	Score          int
	ScoreBreakdown string
	Client         string
	QueueID        string
}
