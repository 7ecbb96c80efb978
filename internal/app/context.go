// Package app is the composition root: it wires configuration, the
// NNTP pool, the NZB/Torrent engines (each exposed behind an
// ipc.EngineClient so the rest of the app never cares whether an
// engine lives in this process or a supervised child), the configured
// indexer and download-client adapters, and the orchestrator into one
// Context, following the same "one struct, one constructor" shape the
// teacher's own app.Context used.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/datallboy/gonzb/internal/clients"
	"github.com/datallboy/gonzb/internal/configstore"
	"github.com/datallboy/gonzb/internal/indexerclient"
	"github.com/datallboy/gonzb/internal/infra/config"
	"github.com/datallboy/gonzb/internal/infra/logger"
	"github.com/datallboy/gonzb/internal/ipc"
	"github.com/datallboy/gonzb/internal/nntp"
	"github.com/datallboy/gonzb/internal/nzbengine"
	"github.com/datallboy/gonzb/internal/orchestrator"
	"github.com/datallboy/gonzb/internal/postprocess"
	"github.com/datallboy/gonzb/internal/torrentengine"
)

// Context holds the core environment and shared resources for gonzb,
// whether it's running as the supervisor or as a standalone
// --child=<engine> subprocess.
type Context struct {
	Config *config.Config
	Logger *logger.Logger
	Store  configstore.Store

	// Engines is keyed by the --child=<engine> convention's engine
	// name ("nzb", "torrent").
	Engines map[string]ipc.EngineClient

	Orchestrator *orchestrator.Orchestrator
	Poller       *orchestrator.Poller
}

// NewSupervisorContext wires every component in a single process: both
// engines run in-process behind ipc.InProcess and the orchestrator
// submits straight to them. Use NewChildEngine instead for the
// out-of-process split (§4.7).
func NewSupervisorContext(cfg *config.Config, log *logger.Logger) (*Context, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}

	engines := map[string]ipc.EngineClient{}
	nzbEngine, err := buildNZBEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	nzbClient := ipc.NewInProcess(nzbEngineStatus(nzbEngine), nzbEngineQueue(nzbEngine), nzbEngineHistory(nzbEngine), nzbEngineCloser(nzbEngine))
	registerNZBHandlers(nzbClient, nzbEngine)
	engines["nzb"] = nzbClient

	var torrentClient ipc.EngineClient
	if cfg.Torrent.Enabled {
		torrentEngine, err := buildTorrentEngine(cfg, log)
		if err != nil {
			return nil, err
		}
		tc := ipc.NewInProcess(torrentEngineStatus(torrentEngine), torrentEngineStatus(torrentEngine), torrentEngineHistory(torrentEngine), torrentEngineCloser(torrentEngine))
		registerTorrentHandlers(tc, torrentEngine)
		torrentClient = tc
		engines["torrent"] = tc
	}

	indexers := buildIndexers(cfg, log)
	downloadClients := buildClients(cfg, nzbClient, torrentClient)

	orch := orchestrator.New(cfg.InstanceID, store, indexers, downloadClients, log)
	poller := orchestrator.NewPoller(orch, defaultImportFunc(log), 2)

	return &Context{
		Config:       cfg,
		Logger:       log,
		Store:        store,
		Engines:      engines,
		Orchestrator: orch,
		Poller:       poller,
	}, nil
}

// NewChildEngine builds the --child=<engine> subprocess's ChildLoop:
// the same engine construction as NewSupervisorContext, but registered
// onto a ChildLoop that talks to the parent over stdio instead of an
// in-process orchestrator.
func NewChildEngine(cfg *config.Config, log *logger.Logger, childName, snapshotPath string) (*ipc.ChildLoop, error) {
	switch childName {
	case "nzb":
		engine, err := buildNZBEngine(cfg, log)
		if err != nil {
			return nil, err
		}
		loop := ipc.NewChildLoop(snapshotPath, nzbEngineStatus(engine), nzbEngineQueue(engine), nzbEngineHistory(engine), nil)
		registerNZBHandlers(loop, engine)
		return loop, nil
	case "torrent":
		engine, err := buildTorrentEngine(cfg, log)
		if err != nil {
			return nil, err
		}
		loop := ipc.NewChildLoop(snapshotPath, torrentEngineStatus(engine), torrentEngineStatus(engine), torrentEngineHistory(engine), nil)
		registerTorrentHandlers(loop, engine)
		return loop, nil
	default:
		return nil, fmt.Errorf("unknown child engine %q", childName)
	}
}

func (c *Context) Close() {
	c.Logger.Info("shutting down...")
	for name, e := range c.Engines {
		if err := e.Close(); err != nil {
			c.Logger.Error("closing %s engine: %v", name, err)
		}
	}
}

func openStore(cfg *config.Config) (configstore.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return configstore.NewPostgresStore(context.Background(), cfg.Store.PostgresDSN)
	case "file":
		return configstore.NewFileStore(cfg.Store.FileDir)
	default:
		return configstore.NewSQLiteStore(cfg.Store.SQLitePath)
	}
}

func buildIndexers(cfg *config.Config, log *logger.Logger) []orchestrator.IndexerEntry {
	entries := make([]orchestrator.IndexerEntry, 0, len(cfg.Indexers))
	for _, ic := range cfg.Indexers {
		c := indexerclient.New(indexerclient.Config{
			Name:        ic.ID,
			BaseURL:     ic.BaseUrl,
			APIPath:     ic.ApiPath,
			APIKey:      ic.ApiKey,
			Categories:  ic.Categories,
			Priority:    ic.Priority,
			Enabled:     ic.Enabled,
			RateLimit:   time.Duration(ic.RateLimitMillis) * time.Millisecond,
			InsecureTLS: ic.InsecureTLS,
		}, log)
		entries = append(entries, orchestrator.IndexerEntry{Client: c, Name: ic.ID, Priority: ic.Priority, Enabled: ic.Enabled})
	}
	return entries
}

func buildClients(cfg *config.Config, nzbEngine, torrentEngine ipc.EngineClient) []orchestrator.DownloadClient {
	out := make([]orchestrator.DownloadClient, 0, len(cfg.Clients))
	for _, cc := range cfg.Clients {
		switch cc.Kind {
		case "sabnzbd":
			out = append(out, clients.NewSABnzbdClient(cc.ID, cc.BaseUrl, cc.ApiKey, cc.Category, cc.Enabled))
		case "nzbget":
			out = append(out, clients.NewNZBGetClient(cc.ID, cc.BaseUrl, cc.Username, cc.Password, cc.Category, cc.Enabled))
		case "qbittorrent":
			out = append(out, clients.NewQBittorrentClient(cc.ID, cc.BaseUrl, cc.Username, cc.Password, cc.Category, cc.Enabled))
		case "engine":
			if nzbEngine != nil {
				out = append(out, clients.NewNZBEngineClient(cc.ID, nzbEngine, cc.Category, cc.Enabled))
			}
		case "torrent-engine":
			if torrentEngine != nil {
				out = append(out, clients.NewTorrentEngineClient(cc.ID, torrentEngine, cc.Category, cc.Enabled))
			}
		}
	}
	return out
}

func defaultImportFunc(log *logger.Logger) orchestrator.ImportFunc {
	return func(ctx context.Context, entry orchestrator.ClientHistoryEntry) error {
		log.Info("import complete: %s (%s)", entry.Title, entry.ContentPath)
		return nil
	}
}

func buildNZBEngine(cfg *config.Config, log *logger.Logger) (*nzbengine.Engine, error) {
	pools := make([]*nntp.Pool, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		if !s.Enabled {
			continue
		}
		pools = append(pools, nntp.NewPool(nntp.ServerConfig{
			Name: s.ID, Host: s.Host, Port: s.Port, TLS: s.TLS,
			Username: s.Username, Password: s.Password,
			MaxConnection: s.MaxConnection, Priority: s.Priority, Enabled: s.Enabled,
		}))
	}
	dispatcher := nntp.NewDispatcher(pools)

	var extractors []postprocess.ArchiveExtractor
	if unrar, err := postprocess.NewUnrarExtractor(); err == nil {
		extractors = append(extractors, unrar)
	} else {
		log.Warn("unrar not found in PATH, rar extraction disabled: %v", err)
	}
	extractors = append(extractors, postprocess.NewSevenZipExtractor(), postprocess.NewZipExtractor())
	pp := postprocess.NewProcessor(postprocess.NewCLIPar2(), extractors, log)

	engine := nzbengine.NewEngine(dispatcher, pp, nzbengine.Config{
		TempDir:  cfg.Download.OutDir,
		FinalDir: cfg.Download.CompletedDir,
	}, log)
	go engine.Start(context.Background())
	return engine, nil
}

func buildTorrentEngine(cfg *config.Config, log *logger.Logger) (*torrentengine.Engine, error) {
	fileStore, err := configstore.NewFileStore(cfg.Torrent.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open torrent resume store: %w", err)
	}
	engine, err := torrentengine.New(torrentengine.Config{
		ListenPort:  cfg.Torrent.ListenPort,
		DownloadDir: cfg.Torrent.DataDir,
		TempDir:     cfg.Torrent.DataDir,
	}, fileStore, log)
	if err != nil {
		return nil, fmt.Errorf("start torrent engine: %w", err)
	}
	return engine, nil
}
