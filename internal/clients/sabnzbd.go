// Package clients implements the submission-target side of §6's
// "Download client protocols": SABnzbd, NZBGet's JSON-RPC, qBittorrent's
// WebUI, and a pass-through to gonzb's own NZB Engine. Each type
// implements orchestrator.DownloadClient so the orchestrator can treat
// them uniformly regardless of wire protocol.
//
// Grounded on poiley-nebularr-operator's internal/adapters/downloadstack
// package (SABnzbdClient/NZBGetClient/QBittorrentClient: the request()
// helper pattern, JSON-RPC envelope, cookie-jar WebUI auth), generalized
// to the add/queue/history operations spec.md §6 names explicitly (that
// pack's adapters cover version/config/pause/resume but not submission,
// since its orchestrator only configures clients rather than submitting
// releases through them).
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/orchestrator"
)

const defaultClientTimeout = 30 * time.Second

// SABnzbdClient implements §6's SABnzbd protocol: `GET /api?mode=...`
// with `apikey`/`output=json` on every call.
type SABnzbdClient struct {
	name    string
	baseURL string
	apiKey  string
	cat     string
	enabled bool
	http    *http.Client
}

func NewSABnzbdClient(name, baseURL, apiKey, category string, enabled bool) *SABnzbdClient {
	return &SABnzbdClient{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		cat:     category,
		enabled: enabled,
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
}

func (c *SABnzbdClient) Name() string  { return c.name }
func (c *SABnzbdClient) Enabled() bool { return c.enabled }

func (c *SABnzbdClient) request(ctx context.Context, mode string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	params.Set("mode", mode)
	params.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.NewTransientNetworkError("sabnzbd "+mode, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sabnzbd %s: HTTP %d: %s", mode, resp.StatusCode, string(body))
	}
	return body, nil
}

// Submit implements §6's `mode=addurl`: `apikey&name&cat&output=json`.
func (c *SABnzbdClient) Submit(ctx context.Context, sub orchestrator.CandidateSubmission) errs.Outcome[string] {
	if sub.NZBURL == "" {
		return errs.Rejected[string]("sabnzbd accepts nzb urls, not magnets")
	}
	params := url.Values{}
	params.Set("name", sub.NZBURL)
	category := sub.Category
	if category == "" {
		category = c.cat
	}
	if category != "" && category != "*" {
		params.Set("cat", category)
	}

	body, err := c.request(ctx, "addurl", params)
	if err != nil {
		return errs.Retry[string]("submit failed", err)
	}

	var result struct {
		Status bool     `json:"status"`
		NZOIDs []string `json:"nzo_ids"`
		Error  string   `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return errs.Failed[string](errs.NewParseError("sabnzbd addurl response", err))
	}
	if !result.Status {
		return errs.Rejected[string](result.Error)
	}
	if len(result.NZOIDs) == 0 {
		return errs.Ok("")
	}
	return errs.Ok(result.NZOIDs[0])
}

func (c *SABnzbdClient) Queue(ctx context.Context) ([]orchestrator.ClientQueueEntry, error) {
	body, err := c.request(ctx, "queue", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Queue struct {
			Slots []struct {
				ID       string `json:"nzo_id"`
				Filename string `json:"filename"`
			} `json:"slots"`
		} `json:"queue"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errs.NewParseError("sabnzbd queue response", err)
	}
	out := make([]orchestrator.ClientQueueEntry, 0, len(result.Queue.Slots))
	for _, s := range result.Queue.Slots {
		out = append(out, orchestrator.ClientQueueEntry{ID: s.ID, Title: s.Filename})
	}
	return out, nil
}

func (c *SABnzbdClient) History(ctx context.Context) ([]orchestrator.ClientHistoryEntry, error) {
	body, err := c.request(ctx, "history", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		History struct {
			Slots []struct {
				ID          string `json:"nzo_id"`
				Name        string `json:"name"`
				Status      string `json:"status"`
				FailMessage string `json:"fail_message"`
				StorageDir  string `json:"storage"`
			} `json:"slots"`
		} `json:"history"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errs.NewParseError("sabnzbd history response", err)
	}
	out := make([]orchestrator.ClientHistoryEntry, 0, len(result.History.Slots))
	for _, s := range result.History.Slots {
		out = append(out, orchestrator.ClientHistoryEntry{
			ID:            s.ID,
			Title:         s.Name,
			Completed:     strings.EqualFold(s.Status, "Completed"),
			FailureReason: s.FailMessage,
			ContentPath:   s.StorageDir,
		})
	}
	return out, nil
}

var _ orchestrator.DownloadClient = (*SABnzbdClient)(nil)
