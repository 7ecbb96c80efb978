// Package nzbengine implements the per-process NZB download queue (§4.4):
// a single worker draining a FIFO queue of items, each walked segment by
// segment through the NNTP dispatcher, yEnc-decoded, assembled to disk,
// and handed to the post-processor.
package nzbengine

import (
	"context"
	"sync/atomic"
	"time"
)

// State is an item's position in the §4.4 state machine.
type State string

const (
	StateQueued      State = "queued"
	StateDownloading State = "downloading"
	StatePaused      State = "paused"
	StateExtracting  State = "extracting"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Item is one queue entry (§3 "Download Item").
type Item struct {
	ID       string
	NZBURL   string
	NZBData  []byte // mandatory NZB XML content, resolved at enqueue
	Name     string
	Category string
	AddedBy  string
	Priority int

	State State

	TotalBytes       int64
	DownloadedBytes  atomic.Int64
	TotalSegments    int
	CompletedSegments atomic.Int64
	TotalFiles       int
	CompletedFiles   int
	SpeedBps         float64
	ETASeconds       int64

	AddedAt     time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	ErrorMessage string

	tempDir  string
	finalDir string
	safeName string

	cancel context.CancelFunc
}

// Snapshot is a value-typed, lock-free-to-read copy of an Item for the IPC
// snapshot writer and status queries.
type Snapshot struct {
	ID                string
	Name              string
	Category          string
	Priority          int
	State             State
	TotalBytes        int64
	DownloadedBytes   int64
	TotalSegments     int
	CompletedSegments int64
	TotalFiles        int
	CompletedFiles    int
	SpeedBps          float64
	ETASeconds        int64
	AddedAt           time.Time
	StartedAt         time.Time
	CompletedAt       time.Time
	ErrorMessage      string
}

func (it *Item) snapshot() Snapshot {
	return Snapshot{
		ID:                it.ID,
		Name:              it.Name,
		Category:          it.Category,
		Priority:          it.Priority,
		State:             it.State,
		TotalBytes:        it.TotalBytes,
		DownloadedBytes:   it.DownloadedBytes.Load(),
		TotalSegments:     it.TotalSegments,
		CompletedSegments: it.CompletedSegments.Load(),
		TotalFiles:        it.TotalFiles,
		CompletedFiles:    it.CompletedFiles,
		SpeedBps:          it.SpeedBps,
		ETASeconds:        it.ETASeconds,
		AddedAt:           it.AddedAt,
		StartedAt:         it.StartedAt,
		CompletedAt:       it.CompletedAt,
		ErrorMessage:      it.ErrorMessage,
	}
}

// HistoryEntry is a terminal-state record kept in the bounded history ring
// (§3 "History Entry", NZB side: ≤100 on flush).
type HistoryEntry struct {
	ID          string
	Name        string
	Category    string
	CompletedAt time.Time
	State       State
	ContentPath string
	Size        int64
}

// ArticleFetcher is the subset of *nntp.Dispatcher the engine depends on,
// so tests can substitute a fake without opening real sockets.
type ArticleFetcher interface {
	Dispatch(messageID string, groups []string) ([]byte, string, error)
}

// PostProcessor runs the §4.5 pipeline over a completed item's temp
// directory; implemented by internal/postprocess.Processor.
type PostProcessor interface {
	Process(ctx context.Context, dir string) error
}

// Config holds the engine's directory and throughput settings.
type Config struct {
	TempDir          string
	FinalDir         string
	CategoryFinalDir map[string]string // category override for FinalDir
}

func (c Config) finalDirFor(category string) string {
	if d, ok := c.CategoryFinalDir[category]; ok && d != "" {
		return d
	}
	return c.FinalDir
}
