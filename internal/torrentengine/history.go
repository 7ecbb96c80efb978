package torrentengine

import "sync"

// historyRing is a bounded ring buffer of HistoryEntry, per spec.md §3
// ("History Entry (ring, ≤500 for torrents...)").
type historyRing struct {
	mu    sync.Mutex
	limit int
	items []HistoryEntry
}

func newHistoryRing(limit int) *historyRing {
	return &historyRing{limit: limit}
}

func (h *historyRing) push(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, e)
	if len(h.items) > h.limit {
		h.items = h.items[len(h.items)-h.limit:]
	}
}

func (h *historyRing) entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HistoryEntry, len(h.items))
	copy(out, h.items)
	return out
}
