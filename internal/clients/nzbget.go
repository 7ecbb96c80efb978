package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync/atomic"

	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/orchestrator"
)

// NZBGetClient implements §6's NZBGet JSON-RPC protocol: POST
// /jsonrpc {method, params, id, jsonrpc}, basic auth.
type NZBGetClient struct {
	name     string
	baseURL  string
	username string
	password string
	cat      string
	enabled  bool
	http     *http.Client
	reqID    int64
}

func NewNZBGetClient(name, baseURL, username, password, category string, enabled bool) *NZBGetClient {
	return &NZBGetClient{
		name:     name,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		cat:      category,
		enabled:  enabled,
		http:     &http.Client{Timeout: defaultClientTimeout},
	}
}

func (c *NZBGetClient) Name() string  { return c.name }
func (c *NZBGetClient) Enabled() bool { return c.enabled }

type nzbgetRPCRequest struct {
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
	Version string `json:"jsonrpc"`
}

type nzbgetRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *NZBGetClient) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	reqBody, err := json.Marshal(nzbgetRPCRequest{
		Method:  method,
		Params:  params,
		ID:      atomic.AddInt64(&c.reqID, 1),
		Version: "2.0",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jsonrpc", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.NewTransientNetworkError("nzbget "+method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errs.NewAuthError("nzbget", fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nzbget %s: HTTP %d: %s", method, resp.StatusCode, string(body))
	}

	var rpcResp nzbgetRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, errs.NewParseError("nzbget rpc response", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("nzbget %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	return rpcResp.Result, nil
}

// Submit implements §6's `append(nzbfile, nzbcontent64, category,
// priority, addToTop, addPaused, dupeKey, dupeScore, dupeMode,
// deleteFiles, parameters)`. nzbcontent64 is fetched and base64-encoded
// from the candidate's nzb_url since NZBGet's RPC takes content, not a
// remote URL.
func (c *NZBGetClient) Submit(ctx context.Context, sub orchestrator.CandidateSubmission) errs.Outcome[string] {
	if sub.NZBURL == "" {
		return errs.Rejected[string]("nzbget accepts nzb content, not magnets")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sub.NZBURL, nil)
	if err != nil {
		return errs.Failed[string](err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Retry[string]("fetch nzb content failed", err)
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Retry[string]("read nzb content failed", err)
	}

	filename := path.Base(sub.NZBURL)
	if filename == "" || filename == "." || filename == "/" {
		filename = sub.Title + ".nzb"
	}
	category := sub.Category
	if category == "" {
		category = c.cat
	}

	result, err := c.call(ctx, "append",
		filename,
		base64.StdEncoding.EncodeToString(content),
		category,
		0,     // priority: normal
		false, // addToTop
		false, // addPaused
		"",    // dupeKey
		0,     // dupeScore
		"SCORE",
		false, // deleteFiles
		[]any{}, // parameters
	)
	if err != nil {
		return errs.Retry[string]("submit failed", err)
	}

	var nzbID int64
	if err := json.Unmarshal(result, &nzbID); err != nil || nzbID <= 0 {
		return errs.Rejected[string]("nzbget append returned no NZBID")
	}
	return errs.Ok(fmt.Sprintf("%d", nzbID))
}

func (c *NZBGetClient) Queue(ctx context.Context) ([]orchestrator.ClientQueueEntry, error) {
	result, err := c.call(ctx, "listgroups")
	if err != nil {
		return nil, err
	}
	var groups []struct {
		NZBID   int    `json:"NZBID"`
		NZBName string `json:"NZBName"`
	}
	if err := json.Unmarshal(result, &groups); err != nil {
		return nil, errs.NewParseError("nzbget listgroups response", err)
	}
	out := make([]orchestrator.ClientQueueEntry, 0, len(groups))
	for _, g := range groups {
		out = append(out, orchestrator.ClientQueueEntry{ID: fmt.Sprintf("%d", g.NZBID), Title: g.NZBName})
	}
	return out, nil
}

func (c *NZBGetClient) History(ctx context.Context) ([]orchestrator.ClientHistoryEntry, error) {
	result, err := c.call(ctx, "history", false)
	if err != nil {
		return nil, err
	}
	var items []struct {
		NZBID    int    `json:"NZBID"`
		NZBName  string `json:"NZBName"`
		Status   string `json:"Status"`
		FinalDir string `json:"FinalDir"`
		DestDir  string `json:"DestDir"`
	}
	if err := json.Unmarshal(result, &items); err != nil {
		return nil, errs.NewParseError("nzbget history response", err)
	}
	out := make([]orchestrator.ClientHistoryEntry, 0, len(items))
	for _, it := range items {
		dir := it.FinalDir
		if dir == "" {
			dir = it.DestDir
		}
		out = append(out, orchestrator.ClientHistoryEntry{
			ID:            fmt.Sprintf("%d", it.NZBID),
			Title:         it.NZBName,
			Completed:     strings.HasPrefix(it.Status, "SUCCESS"),
			FailureReason: it.Status,
			ContentPath:   dir,
		})
	}
	return out, nil
}

var _ orchestrator.DownloadClient = (*NZBGetClient)(nil)
