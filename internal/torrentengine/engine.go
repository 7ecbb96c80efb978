package torrentengine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"golang.org/x/time/rate"

	"github.com/datallboy/gonzb/internal/configstore"
	"github.com/datallboy/gonzb/internal/infra/logger"
)

var ErrDuplicateTorrent = errors.New("torrentengine: torrent already added")
var ErrNotFound = errors.New("torrentengine: torrent not found")

var btihPattern = regexp.MustCompile(`(?i)btih:([a-fA-F0-9]{40})`)

// Engine wraps one *torrent.Client and the bookkeeping spec.md §4.6
// requires on top of it: a TorrentItem mirror per handle, a bounded
// history ring, periodic resume-data persistence, and a global
// pause/speed-limit state the teacher's single-worker engines don't
// need but this domain does.
type Engine struct {
	cfg    Config
	client *torrent.Client
	store  *configstore.FileStore
	log    *logger.Logger

	speedLimiter *rate.Limiter

	mu           sync.Mutex
	handles      map[string]*torrent.Torrent // info_hash -> handle
	items        map[string]*TorrentItem
	globalPaused bool

	history *historyRing

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds an Engine and its underlying anacrolix/torrent client.
func New(cfg Config, store *configstore.FileStore, log *logger.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()

	clientCfg := torrent.NewDefaultClientConfig()
	clientCfg.DataDir = cfg.DownloadDir
	clientCfg.ListenPort = cfg.ListenPort
	clientCfg.NoDHT = !cfg.EnableDHT
	clientCfg.DisableUTP = false
	clientCfg.Seed = true
	switch strings.ToLower(cfg.Encryption) {
	case "disabled":
		clientCfg.HeaderObfuscationPolicy = torrent.HeaderObfuscationPolicy{Preferred: false, RequirePreferred: true}
	case "forced":
		clientCfg.HeaderObfuscationPolicy = torrent.HeaderObfuscationPolicy{Preferred: true, RequirePreferred: true}
	default: // "enabled" or unset: prefer but don't require
		clientCfg.HeaderObfuscationPolicy = torrent.HeaderObfuscationPolicy{Preferred: true, RequirePreferred: false}
	}

	speedLimiter := rate.NewLimiter(rate.Inf, 1<<20)
	clientCfg.DownloadRateLimiter = speedLimiter

	client, err := torrent.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("torrentengine: create client: %w", err)
	}

	e := &Engine{
		cfg:          cfg,
		client:       client,
		store:        store,
		log:          log,
		speedLimiter: speedLimiter,
		handles:      make(map[string]*torrent.Torrent),
		items:        make(map[string]*TorrentItem),
		history:      newHistoryRing(cfg.HistoryLimit),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	e.rehydrate()
	go e.run()
	return e, nil
}

// AddTorrent implements §4.6's add_torrent. magnetOrData is either a
// magnet URI or raw .torrent file bytes (distinguished by a "magnet:"
// prefix).
func (e *Engine) AddTorrent(magnetOrData []byte, category, savePath, name string) (ok bool, msg string, id string) {
	infoHash, err := e.resolveInfoHash(magnetOrData)
	if err != nil {
		return false, err.Error(), ""
	}

	e.mu.Lock()
	if _, exists := e.handles[infoHash]; exists {
		e.mu.Unlock()
		return false, ErrDuplicateTorrent.Error(), infoHash
	}
	e.mu.Unlock()

	var t *torrent.Torrent
	if strings.HasPrefix(strings.TrimSpace(string(magnetOrData)), "magnet:") {
		t, err = e.client.AddMagnet(strings.TrimSpace(string(magnetOrData)))
	} else {
		mi, merr := metainfo.Load(strings.NewReader(string(magnetOrData)))
		if merr != nil {
			return false, fmt.Sprintf("parse torrent data: %v", merr), ""
		}
		t, err = e.client.AddTorrent(mi)
	}
	if err != nil {
		return false, err.Error(), ""
	}

	if savePath != "" {
		// anacrolix/torrent has no per-torrent save path override once
		// the client is constructed with a single DataDir; callers that
		// need per-category directories are expected to partition
		// cfg.DownloadDir upstream (the orchestrator picks save_path
		// before submission). Recorded here for display only.
	}

	item := &TorrentItem{
		ID:       infoHash,
		InfoHash: infoHash,
		Name:     name,
		Category: category,
		SavePath: savePath,
		Status:   StatusMetadata,
		AddedAt:  timeNow(),
	}

	e.mu.Lock()
	e.handles[infoHash] = t
	e.items[infoHash] = item
	e.mu.Unlock()

	e.saveResumeRecord(infoHash, t, category, savePath, name)

	t.SetDisplayName(name)
	go func() {
		select {
		case <-t.GotInfo():
			t.DownloadAll()
		case <-e.stopCh:
		}
	}()

	return true, "added", infoHash
}

func (e *Engine) resolveInfoHash(magnetOrData []byte) (string, error) {
	s := strings.TrimSpace(string(magnetOrData))
	if strings.HasPrefix(s, "magnet:") {
		if m := btihPattern.FindStringSubmatch(s); len(m) == 2 {
			return strings.ToLower(m[1]), nil
		}
		return "", errors.New("torrentengine: magnet has no v1 info hash")
	}
	mi, err := metainfo.Load(strings.NewReader(s))
	if err != nil {
		return "", fmt.Errorf("torrentengine: parse torrent data: %w", err)
	}
	return strings.ToLower(mi.HashInfoBytes().HexString()), nil
}

// PauseItem, ResumeItem implement §4.6's lifecycle ops via
// DisallowData{Download,Upload}/SetMaxEstablishedConns(0), the same
// hard-pause technique as the grounding example.
func (e *Engine) PauseItem(id string) error {
	t, err := e.handle(id)
	if err != nil {
		return err
	}
	t.DisallowDataDownload()
	t.DisallowDataUpload()
	t.SetMaxEstablishedConns(0)

	e.mu.Lock()
	if item, ok := e.items[id]; ok {
		item.Status = StatusPaused
	}
	e.mu.Unlock()
	return nil
}

func (e *Engine) ResumeItem(id string) error {
	t, err := e.handle(id)
	if err != nil {
		return err
	}
	t.SetMaxEstablishedConns(e.cfg.ConnectionsCap)
	t.AllowDataUpload()
	t.AllowDataDownload()
	t.DownloadAll()
	return nil
}

func (e *Engine) RemoveItem(id string, deleteFiles bool) error {
	t, err := e.handle(id)
	if err != nil {
		return err
	}
	t.Drop()

	e.mu.Lock()
	delete(e.handles, id)
	delete(e.items, id)
	e.mu.Unlock()

	e.store.Save(context.Background(), "torrentengine", resumeKind(id), struct{}{})
	return nil
}

func (e *Engine) PauseAll() {
	e.mu.Lock()
	e.globalPaused = true
	handles := make([]*torrent.Torrent, 0, len(e.handles))
	for _, t := range e.handles {
		handles = append(handles, t)
	}
	e.mu.Unlock()

	for _, t := range handles {
		t.DisallowDataDownload()
		t.DisallowDataUpload()
	}
}

func (e *Engine) ResumeAll() {
	e.mu.Lock()
	e.globalPaused = false
	handles := make([]*torrent.Torrent, 0, len(e.handles))
	for _, t := range e.handles {
		handles = append(handles, t)
	}
	e.mu.Unlock()

	for _, t := range handles {
		t.AllowDataDownload()
		t.AllowDataUpload()
		t.DownloadAll()
	}
}

// SetSpeedLimit sets the session-global download rate in bytes/sec; 0
// disables the limit. anacrolix/torrent applies this via a
// golang.org/x/time/rate limiter assigned to the client config at
// construction, so changing it at runtime is tracked here and applied
// to future client behavior through DownloadRateLimiter's SetLimit.
func (e *Engine) SetSpeedLimit(bytesPerSec int64) {
	if bytesPerSec <= 0 {
		e.speedLimiter.SetLimit(rate.Inf)
		return
	}
	e.speedLimiter.SetLimit(rate.Limit(bytesPerSec))
}

// GetSpeedLimit returns the current session-global download rate limit
// in bytes/sec, or 0 if unlimited.
func (e *Engine) GetSpeedLimit() int64 {
	limit := e.speedLimiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	return int64(limit)
}

func (e *Engine) handle(id string) (*torrent.Torrent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.handles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (e *Engine) Items() []TorrentItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TorrentItem, 0, len(e.items))
	for _, item := range e.items {
		out = append(out, *item)
	}
	return out
}

func (e *Engine) History() []HistoryEntry {
	return e.history.entries()
}

func (e *Engine) Close() error {
	close(e.stopCh)
	<-e.doneCh
	errs := e.client.Close()
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (e *Engine) run() {
	defer close(e.doneCh)

	syncTicker := time.NewTicker(e.cfg.StateSyncInterval)
	defer syncTicker.Stop()
	resumeTicker := time.NewTicker(e.cfg.ResumeSaveInterval)
	defer resumeTicker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-syncTicker.C:
			e.syncState()
		case <-resumeTicker.C:
			e.persistResumeData()
		}
	}
}

func timeNow() time.Time { return time.Now().UTC() }

func resumeKind(infoHash string) string {
	return "resume_" + infoHash
}
