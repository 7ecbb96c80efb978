package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/ipc"
	"github.com/datallboy/gonzb/internal/orchestrator"
)

// NZBEngineClient is the "NZB Hunt clients forward to the NZB Engine"
// branch of §4.10 step 6: instead of talking an external wire protocol,
// submissions go straight to gonzb's own NZB Engine over the
// EngineClient capability interface (§4.7), whether that engine lives
// in-process or behind a supervised child.
type NZBEngineClient struct {
	name    string
	engine  ipc.EngineClient
	cat     string
	enabled bool
	http    *http.Client
}

func NewNZBEngineClient(name string, engine ipc.EngineClient, category string, enabled bool) *NZBEngineClient {
	return &NZBEngineClient{
		name:    name,
		engine:  engine,
		cat:     category,
		enabled: enabled,
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
}

func (c *NZBEngineClient) Name() string  { return c.name }
func (c *NZBEngineClient) Enabled() bool { return c.enabled }

// Submit fetches the candidate's NZB content (add_nzb takes the
// document itself per §4.4, not a remote URL) and forwards it through
// the "add_nzb" command.
func (c *NZBEngineClient) Submit(ctx context.Context, sub orchestrator.CandidateSubmission) errs.Outcome[string] {
	if sub.NZBURL == "" {
		return errs.Rejected[string]("NZB engine accepts nzb documents, not magnets")
	}

	submitCtx, cancel := context.WithTimeout(ctx, ipc.MethodTimeout("add_nzb"))
	defer cancel()

	req, err := http.NewRequestWithContext(submitCtx, http.MethodGet, sub.NZBURL, nil)
	if err != nil {
		return errs.Failed[string](err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Retry[string]("fetch nzb content failed", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Retry[string]("read nzb content failed", err)
	}

	category := sub.Category
	if category == "" {
		category = c.cat
	}

	outcome := c.engine.Command(submitCtx, "add_nzb", sub.Title, category, 0, data)
	if !outcome.IsOK() {
		return errs.Outcome[string]{Kind: outcome.Kind, Reason: outcome.Reason, Err: outcome.Err}
	}

	var id string
	if err := json.Unmarshal(outcome.Value, &id); err != nil {
		return errs.Failed[string](fmt.Errorf("parse add_nzb result: %w", err))
	}
	return errs.Ok(id)
}

type nzbEngineQueueEntry struct {
	ID   string
	Name string
}

func (c *NZBEngineClient) Queue(ctx context.Context) ([]orchestrator.ClientQueueEntry, error) {
	raw, err := c.engine.Queue(ctx)
	if err != nil {
		return nil, err
	}
	var entries []nzbEngineQueueEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.NewParseError("nzb engine queue snapshot", err)
	}
	out := make([]orchestrator.ClientQueueEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, orchestrator.ClientQueueEntry{ID: e.ID, Title: e.Name})
	}
	return out, nil
}

type nzbEngineHistoryEntry struct {
	ID          string
	Name        string
	State       string
	ContentPath string
	CompletedAt time.Time
}

func (c *NZBEngineClient) History(ctx context.Context) ([]orchestrator.ClientHistoryEntry, error) {
	raw, err := c.engine.History(ctx)
	if err != nil {
		return nil, err
	}
	var entries []nzbEngineHistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.NewParseError("nzb engine history snapshot", err)
	}
	out := make([]orchestrator.ClientHistoryEntry, 0, len(entries))
	for _, e := range entries {
		completed := e.State == "completed"
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

var _ orchestrator.DownloadClient = (*NZBEngineClient)(nil)
