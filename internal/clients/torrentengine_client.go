package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/ipc"
	"github.com/datallboy/gonzb/internal/orchestrator"
)

// TorrentEngineClient is the torrent half of §4.10 step 6: a candidate
// carrying a Magnet instead of an NZBURL forwards to gonzb's own Torrent
// Engine through the "add_torrent" command rather than an external
// client's wire protocol.
type TorrentEngineClient struct {
	name    string
	engine  ipc.EngineClient
	cat     string
	enabled bool
	http    *http.Client
}

func NewTorrentEngineClient(name string, engine ipc.EngineClient, category string, enabled bool) *TorrentEngineClient {
	return &TorrentEngineClient{
		name:    name,
		engine:  engine,
		cat:     category,
		enabled: enabled,
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
}

func (c *TorrentEngineClient) Name() string  { return c.name }
func (c *TorrentEngineClient) Enabled() bool { return c.enabled }

func (c *TorrentEngineClient) Submit(ctx context.Context, sub orchestrator.CandidateSubmission) errs.Outcome[string] {
	if sub.Magnet == "" {
		return errs.Rejected[string]("torrent engine accepts magnets, not nzb urls")
	}

	submitCtx, cancel := context.WithTimeout(ctx, ipc.MethodTimeout("add_torrent"))
	defer cancel()

	category := sub.Category
	if category == "" {
		category = c.cat
	}

	outcome := c.engine.Command(submitCtx, "add_torrent", []byte(sub.Magnet), category, "", sub.Title)
	if !outcome.IsOK() {
		return errs.Outcome[string]{Kind: outcome.Kind, Reason: outcome.Reason, Err: outcome.Err}
	}

	var id string
	if err := json.Unmarshal(outcome.Value, &id); err != nil {
		return errs.Failed[string](fmt.Errorf("parse add_torrent result: %w", err))
	}
	return errs.Ok(id)
}

type torrentEngineItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *TorrentEngineClient) Queue(ctx context.Context) ([]orchestrator.ClientQueueEntry, error) {
	raw, err := c.engine.Queue(ctx)
	if err != nil {
		return nil, err
	}
	var items []torrentEngineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errs.NewParseError("torrent engine queue snapshot", err)
	}
	out := make([]orchestrator.ClientQueueEntry, 0, len(items))
	for _, it := range items {
		out = append(out, orchestrator.ClientQueueEntry{ID: it.ID, Title: it.Name})
	}
	return out, nil
}

type torrentEngineHistoryEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	State       string    `json:"state"`
	ContentPath string    `json:"content_path"`
	CompletedAt time.Time `json:"completed_at"`
}

func (c *TorrentEngineClient) History(ctx context.Context) ([]orchestrator.ClientHistoryEntry, error) {
	raw, err := c.engine.History(ctx)
	if err != nil {
		return nil, err
	}
	var entries []torrentEngineHistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.NewParseError("torrent engine history snapshot", err)
	}
	out := make([]orchestrator.ClientHistoryEntry, 0, len(entries))
	for _, e := range entries {
		completed := e.State == "completed" || e.State == "seeding"
		reason := ""
		if !completed {
			reason = e.State
		}
		out = append(out, orchestrator.ClientHistoryEntry{
			ID:            e.ID,
			Title:         e.Name,
			Completed:     completed,
			FailureReason: reason,
			ContentPath:   e.ContentPath,
		})
	}
	return out, nil
}

var _ orchestrator.DownloadClient = (*TorrentEngineClient)(nil)
