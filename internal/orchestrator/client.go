package orchestrator

import (
	"context"

	"github.com/datallboy/gonzb/internal/errs"
)

// CandidateSubmission is what the orchestrator hands a DownloadClient
// once a candidate has been selected (§4.10 step 6).
type CandidateSubmission struct {
	NZBURL   string // empty for torrent candidates; Magnet set instead
	Magnet   string
	Title    string
	Category string
}

// ClientQueueEntry/ClientHistoryEntry are the orchestrator's own view of
// a download client's live state, independent of which wire protocol
// produced them (SABnzbd/NZBGet/qBittorrent/the NZB Engine's own IPC).
type ClientQueueEntry struct {
	ID    string
	Title string
}

type ClientHistoryEntry struct {
	ID            string
	Title         string
	Completed     bool // false means failed
	FailureReason string
	ContentPath   string
}

// DownloadClient is the interface every submission target in
// internal/clients implements; defined here (the consumer) rather than
// in internal/clients so that package can stay free of an import back
// on internal/orchestrator.
type DownloadClient interface {
	Name() string
	Enabled() bool
	Submit(ctx context.Context, sub CandidateSubmission) errs.Outcome[string]
	Queue(ctx context.Context) ([]ClientQueueEntry, error)
	History(ctx context.Context) ([]ClientHistoryEntry, error)
}
