package indexerclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/datallboy/gonzb/internal/infra/logger"
)

const defaultSearchLimit = 10

// Client searches one Newznab indexer, rate-limited per-indexer so a
// single slow/misbehaving indexer can't be hammered by retry loops —
// the teacher's newsnab.Client makes one unthrottled http.Get per call;
// this generalizes it with a token bucket grounded on the DOMAIN STACK's
// golang.org/x/time/rate wiring.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *logger.Logger

	mu sync.Mutex
}

// New builds a Client for one configured indexer. A zero cfg.RateLimit
// disables throttling (an unlimited limiter).
func New(cfg Config, log *logger.Logger) *Client {
	transport := &http.Transport{}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RateLimit), 1)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Transport: transport, Timeout: 30 * time.Second},
		limiter: limiter,
		logger:  log,
	}
}

func (c *Client) searchURL(query string, categories []string, limit int) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.APIPath
	q := url.Values{}
	q.Set("t", "search")
	q.Set("apikey", c.cfg.APIKey)
	q.Set("q", query)
	if len(categories) > 0 {
		q.Set("cat", strings.Join(categories, ","))
	}
	q.Set("limit", fmt.Sprintf("%d", limit))
	return base + "?" + q.Encode()
}

// Search implements §4.8: GET the Newznab search endpoint, dispatch the
// response body as JSON or XML depending on its first non-whitespace
// byte, and return the parsed candidates. Any HTTP error, non-200
// status, empty body, or parse failure yields an empty slice — per
// spec.md this is logged, not fatal, so the orchestrator can keep
// trying other indexers.
func (c *Client) Search(ctx context.Context, query string, categories []string) []Candidate {
	if err := c.limiter.Wait(ctx); err != nil {
		c.debugf("indexer %s: rate limiter wait aborted: %v", c.cfg.Name, err)
		return nil
	}

	body, err := c.get(ctx, c.searchURL(query, categories, defaultSearchLimit))
	if err != nil {
		c.debugf("indexer %s: search failed: %v", c.cfg.Name, err)
		return nil
	}

	candidates, err := dispatchParse(body)
	if err != nil {
		c.debugf("indexer %s: parse failed: %v", c.cfg.Name, err)
		return nil
	}
	return candidates
}

// ValidateAPIKey implements §4.8 validate_api_key: a minimal search
// succeeds if the response carries at least one item, and fails if the
// body signals an explicit rejection.
func (c *Client) ValidateAPIKey(ctx context.Context) (bool, error) {
	body, err := c.get(ctx, c.searchURL("test", nil, 1))
	if err != nil {
		return false, err
	}

	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "invalid api key") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, `code="100"`) || strings.Contains(lower, `code="101"`) || strings.Contains(lower, `code="102"`) {
		return false, nil
	}

	candidates, err := dispatchParse(body)
	if err != nil {
		return false, err
	}
	hasChannel := strings.Contains(lower, "<channel") || strings.Contains(lower, `"channel"`)
	return len(candidates) > 0 || hasChannel, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer %s returned status %d", c.cfg.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("indexer %s returned an empty body", c.cfg.Name)
	}
	return body, nil
}

func (c *Client) debugf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(format, args...)
	}
}

func dispatchParse(body []byte) ([]Candidate, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		return parseJSON(body)
	}
	return parseXML(body)
}
