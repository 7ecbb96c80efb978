// Package configstore implements the ConfigStore abstraction (§4.11):
// typed get/save of per-instance documents with atomic writes. Two
// backends satisfy the same Store interface — a structured SQL store
// (sqlite by default, Postgres optionally) for queryable per-instance
// documents, and a file-backed JSON store for the engine-owned
// documents spec.md §6 pins to specific on-disk shapes (queue/history,
// torrent state, bandwidth history, snapshot file), since those must be
// readable by a child process with no shared DB handle across the IPC
// boundary.
package configstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no document exists for the given
// instance/kind pair.
var ErrNotFound = errors.New("configstore: document not found")

// Document kinds. Every persisted entity lives under a single
// instance_id (per spec.md §3's Ownership note); kind picks which
// document within that instance.
const (
	KindCollection       = "collection"
	KindBlocklist        = "blocklist"
	KindRequestedQueue   = "requested_queue"
	KindIndexers         = "indexers"
	KindProfiles         = "profiles"
	KindCustomFormats    = "custom_formats"
	KindClients          = "clients"
	KindNZBQueue         = "nzb_queue"
	KindTorrentState     = "torrent_state"
	KindBandwidthHistory = "bandwidth_history"
	KindSnapshot         = "snapshot"
)

// Store is a typed get/save abstraction over one JSON-serializable
// document per (instance_id, kind). Save must be atomic: a reader must
// never observe a partially written document.
type Store interface {
	Get(ctx context.Context, instanceID, kind string, out any) error
	Save(ctx context.Context, instanceID, kind string, v any) error
}

// CollectionItem is a per-instance library entry (spec.md §3).
type CollectionItem struct {
	TMDBID              string     `json:"tmdb_id,omitempty"`
	Title               string     `json:"title"`
	Year                int        `json:"year"`
	Status              string     `json:"status"` // requested | available
	RootFolder          string     `json:"root_folder"`
	QualityProfile      string     `json:"quality_profile"`
	MinimumAvailability string     `json:"minimum_availability"` // announced | inCinemas | released
	RequestedAt         string     `json:"requested_at"`
	InCinemas           string     `json:"in_cinemas,omitempty"`
	DigitalRelease      string     `json:"digital_release,omitempty"`
	PhysicalRelease     string     `json:"physical_release,omitempty"`
}

// BlocklistEntry records a release that failed and should not be
// re-selected. Uniqueness is by lowercased, trimmed SourceTitle.
type BlocklistEntry struct {
	SourceTitle  string `json:"source_title"`
	MovieTitle   string `json:"movie_title"`
	Year         int    `json:"year"`
	ReasonFailed string `json:"reason_failed"`
	DateAdded    string `json:"date_added"`
}

// RequestedQueueEntry records one release the orchestrator itself
// submitted to a download client, so it can later tell "ours" apart
// from externally added items with the same queue_id.
type RequestedQueueEntry struct {
	QueueID        string `json:"queue_id"`
	Title          string `json:"title"`
	Year           int    `json:"year"`
	Score          int    `json:"score"`
	ScoreBreakdown string `json:"score_breakdown"`
}
