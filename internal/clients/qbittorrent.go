package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/orchestrator"
)

// qBittorrent torrent states that mean "finished" for §4.10's completion
// poller, split into success and failure per the WebUI's state strings.
var qbtCompletedStates = map[string]bool{
	"uploading": true, "stalledUP": true, "pausedUP": true,
	"queuedUP": true, "forcedUP": true, "checkingUP": true,
}
var qbtFailedStates = map[string]bool{
	"error": true, "missingFiles": true,
}

// QBittorrentClient implements §6's qBittorrent WebUI v2 protocol:
// cookie-`SID` auth via `/api/v2/auth/login`, then
// `/api/v2/torrents/info|add|pause|resume|delete` and
// `/api/v2/transfer/info`.
type QBittorrentClient struct {
	name     string
	baseURL  string
	username string
	password string
	cat      string
	enabled  bool
	http     *http.Client
}

func NewQBittorrentClient(name, baseURL, username, password, category string, enabled bool) *QBittorrentClient {
	jar, _ := cookiejar.New(nil)
	return &QBittorrentClient{
		name:     name,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		cat:      category,
		enabled:  enabled,
		http:     &http.Client{Timeout: defaultClientTimeout, Jar: jar},
	}
}

func (c *QBittorrentClient) Name() string  { return c.name }
func (c *QBittorrentClient) Enabled() bool { return c.enabled }

func (c *QBittorrentClient) login(ctx context.Context) error {
	data := url.Values{}
	data.Set("username", c.username)
	data.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/auth/login", strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.NewTransientNetworkError("qbittorrent login", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusForbidden {
		return errs.NewAuthError("qbittorrent", "too many failed login attempts")
	}
	if strings.TrimSpace(string(body)) != "Ok." {
		return errs.NewAuthError("qbittorrent", strings.TrimSpace(string(body)))
	}
	// The WebUI's response Set-Cookie carries the SID; http.Client's
	// cookiejar persists it across subsequent requests to baseURL.
	return nil
}

func (c *QBittorrentClient) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	target := c.baseURL + endpoint
	if query != nil {
		target += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, target, nil, "")
}

func (c *QBittorrentClient) postForm(ctx context.Context, endpoint string, data url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(data.Encode()), "application/x-www-form-urlencoded")
}

func (c *QBittorrentClient) do(ctx context.Context, method, target string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.NewTransientNetworkError("qbittorrent "+target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		return nil, errs.NewTransientNetworkError("qbittorrent session expired, retry", fmt.Errorf("403"))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qbittorrent %s: HTTP %d: %s", target, resp.StatusCode, string(out))
	}
	return out, nil
}

// Submit implements `/api/v2/torrents/add`, forwarding a magnet URI
// directly or an NZB-engine-incompatible nzb_url as a remote torrent
// URL ("qBittorrent-style clients forward magnet/NZB URL as
// appropriate" per §4.10 step 6).
func (c *QBittorrentClient) Submit(ctx context.Context, sub orchestrator.CandidateSubmission) errs.Outcome[string] {
	if err := c.login(ctx); err != nil {
		return errs.Failed[string](err)
	}

	urls := sub.Magnet
	if urls == "" {
		urls = sub.NZBURL
	}
	if urls == "" {
		return errs.Rejected[string]("candidate has neither a magnet nor a url")
	}

	category := sub.Category
	if category == "" {
		category = c.cat
	}

	var buf strings.Builder
	w := multipart.NewWriter(&buf)
	w.WriteField("urls", urls)
	if category != "" && category != "*" {
		w.WriteField("category", category)
	}
	w.Close()

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v2/torrents/add", strings.NewReader(buf.String()), w.FormDataContentType())
	if err != nil {
		return errs.Retry[string]("submit failed", err)
	}
	if strings.Contains(string(body), "Fails") {
		return errs.Rejected[string]("qbittorrent rejected the torrent")
	}
	// qBittorrent's add endpoint doesn't return the resulting hash; the
	// orchestrator's poller reconciles by title via Queue() until a
	// matching entry appears.
	return errs.Ok(sub.Title)
}

type qbtTorrent struct {
	Hash  string `json:"hash"`
	Name  string `json:"name"`
	State string `json:"state"`
}

func (c *QBittorrentClient) torrentsInfo(ctx context.Context) ([]qbtTorrent, error) {
	body, err := c.get(ctx, "/api/v2/torrents/info", nil)
	if err != nil {
		return nil, err
	}
	var torrents []qbtTorrent
	if err := json.Unmarshal(body, &torrents); err != nil {
		return nil, errs.NewParseError("qbittorrent torrents/info response", err)
	}
	return torrents, nil
}

func (c *QBittorrentClient) Queue(ctx context.Context) ([]orchestrator.ClientQueueEntry, error) {
	torrents, err := c.torrentsInfo(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]orchestrator.ClientQueueEntry, 0, len(torrents))
	for _, t := range torrents {
		if qbtCompletedStates[t.State] || qbtFailedStates[t.State] {
			continue
		}
		out = append(out, orchestrator.ClientQueueEntry{ID: t.Hash, Title: t.Name})
	}
	return out, nil
}

func (c *QBittorrentClient) History(ctx context.Context) ([]orchestrator.ClientHistoryEntry, error) {
	torrents, err := c.torrentsInfo(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]orchestrator.ClientHistoryEntry, 0)
	for _, t := range torrents {
		switch {
		case qbtCompletedStates[t.State]:
			out = append(out, orchestrator.ClientHistoryEntry{ID: t.Hash, Title: t.Name, Completed: true})
		case qbtFailedStates[t.State]:
			out = append(out, orchestrator.ClientHistoryEntry{ID: t.Hash, Title: t.Name, Completed: false, FailureReason: t.State})
		}
	}
	return out, nil
}

var _ orchestrator.DownloadClient = (*QBittorrentClient)(nil)
