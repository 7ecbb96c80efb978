// Package torrentengine wraps a single BitTorrent session (§4.6):
// add_torrent, standard lifecycle ops, speed limiting, a periodic
// state-sync loop mapping session state onto TorrentItem.status, and
// atomic per-info-hash resume data.
//
// Grounded on starsinc1708-TorrX's services/torrent-engine/.../anacrolix
// package, the only example repo in the pack that wraps
// github.com/anacrolix/torrent for a long-running multi-torrent
// service (session map keyed by info-hash, GotInfo()-gated metadata
// readiness, hard-pause via DisallowData{Download,Upload} +
// SetMaxEstablishedConns(0), peak-progress high-water marking across
// restarts). Adapted from its streaming-session domain (focus/idle/
// reaping) down to this spec's simpler download-to-completion model.
package torrentengine

import "time"

// Config mirrors spec.md §4.6's configuration surface.
type Config struct {
	ListenPort      int
	DownloadDir     string
	TempDir         string
	ResumeDataDir   string
	ActiveDownloads int
	ActiveSeeds     int
	ActiveLimit     int
	ConnectionsCap  int
	EnableDHT       bool
	EnableLSD       bool
	EnableUPnP      bool
	EnableNATPMP    bool
	SeedRatioLimit  float64
	SeedTimeLimit   time.Duration
	Encryption      string // "disabled" | "enabled" | "forced"

	StateSyncInterval  time.Duration // default 1s
	ResumeSaveInterval time.Duration // default 30s, per §4.6
	HistoryLimit       int           // default 500, per §3
}

func (c Config) withDefaults() Config {
	if c.StateSyncInterval <= 0 {
		c.StateSyncInterval = time.Second
	}
	if c.ResumeSaveInterval <= 0 {
		c.ResumeSaveInterval = 30 * time.Second
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 500
	}
	if c.ConnectionsCap <= 0 {
		c.ConnectionsCap = 200
	}
	return c
}
