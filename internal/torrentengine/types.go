package torrentengine

import "time"

// Status values a TorrentItem may hold, per spec.md §3/§4.6's session
// state mapping table.
const (
	StatusChecking    = "checking"
	StatusMetadata    = "metadata"
	StatusDownloading = "downloading"
	StatusPaused      = "paused"
	StatusSeeding     = "seeding"
	StatusCompleted   = "completed"
	StatusError       = "error"
)

// TorrentItem mirrors spec.md §3's Torrent Item.
type TorrentItem struct {
	ID          string    `json:"id"` // lowercase hex info_hash
	InfoHash    string    `json:"info_hash"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	SavePath    string    `json:"save_path"`
	Status      string    `json:"status"`
	Progress    float64   `json:"progress"`
	DLSpeed     int64     `json:"dl_speed"`
	UPSpeed     int64     `json:"up_speed"`
	NumSeeds    int       `json:"num_seeds"`
	NumPeers    int       `json:"num_peers"`
	ETASeconds  int64     `json:"eta_seconds"`
	Ratio       float64   `json:"ratio"`
	ContentPath string    `json:"content_path"`
	ErrorMsg    string    `json:"error,omitempty"`
	AddedAt     time.Time `json:"added_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// HistoryEntry is one completed-or-terminal torrent, per spec.md §3
// (ring, ≤500 entries).
type HistoryEntry struct {
	ID          string    `json:"id"`
	Hash        string    `json:"hash,omitempty"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	CompletedAt time.Time `json:"completed_at"`
	State       string    `json:"state"`
	ContentPath string    `json:"content_path"`
	SavePath    string    `json:"save_path"`
	Size        int64     `json:"size"`
}

// resumeRecord is what gets persisted per info-hash so the engine can
// rehydrate a torrent on restart without re-downloading metadata from
// peers when its metainfo is known; with only the magnet URI, metadata
// is fetched from peers again.
type resumeRecord struct {
	InfoHash  string `json:"info_hash"`
	MagnetURI string `json:"magnet_uri,omitempty"`
	Metainfo  []byte `json:"metainfo,omitempty"`
	Category  string `json:"category"`
	SavePath  string `json:"save_path"`
	Name      string `json:"name"`
}
