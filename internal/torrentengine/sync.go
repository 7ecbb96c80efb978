package torrentengine

import (
	"github.com/anacrolix/torrent"
)

// syncState implements §4.6's state-sync loop: for each live handle,
// read session stats and update the mirror TorrentItem, applying the
// session-state → status mapping table.
func (e *Engine) syncState() {
	e.mu.Lock()
	handles := make(map[string]*torrent.Torrent, len(e.handles))
	for id, t := range e.handles {
		handles[id] = t
	}
	globalPaused := e.globalPaused
	e.mu.Unlock()

	for id, t := range handles {
		e.syncOne(id, t, globalPaused)
	}
}

func (e *Engine) syncOne(id string, t *torrent.Torrent, globalPaused bool) {
	e.mu.Lock()
	item, ok := e.items[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	select {
	case <-t.GotInfo():
	default:
		e.mu.Lock()
		item.Status = StatusMetadata
		e.mu.Unlock()
		return
	}

	length := t.Length()
	completed := t.BytesCompleted()
	progress := 0.0
	if length > 0 {
		progress = float64(completed) / float64(length)
	}

	stats := t.Stats()
	wasCompleted := item.Status == StatusCompleted || item.Status == StatusSeeding

	status := statusFor(t, progress, globalPaused)

	e.mu.Lock()
	item.Progress = progress
	item.NumPeers = stats.ActivePeers
	item.NumSeeds = stats.ConnectedSeeders
	item.DLSpeed = stats.BytesReadUsefulData.Int64()
	item.UPSpeed = stats.BytesWrittenData.Int64()
	item.Status = status

	if !wasCompleted && (status == StatusSeeding || status == StatusCompleted) {
		item.CompletedAt = timeNow()
		e.history.push(HistoryEntry{
			ID:          item.ID,
			Hash:        item.InfoHash,
			Name:        item.Name,
			Category:    item.Category,
			CompletedAt: item.CompletedAt,
			State:       status,
			ContentPath: item.ContentPath,
			SavePath:    item.SavePath,
			Size:        length,
		})
	}
	e.mu.Unlock()
}

// statusFor implements §4.6's session-state → TorrentItem.status table.
// anacrolix/torrent has no public "verifying hash" flag the way
// libtorrent's checking_files/checking_resume_data states do, so the
// checking status is only ever observed transiently right after
// rehydrate() re-adds a torrent from resume data (see resume.go);
// steady-state sync only distinguishes metadata/downloading/paused/
// seeding/completed.
func statusFor(t *torrent.Torrent, progress float64, globalPaused bool) string {
	select {
	case <-t.GotInfo():
	default:
		return StatusMetadata
	}

	if globalPaused {
		return StatusPaused
	}

	if progress >= 1.0 {
		if t.Seeding() {
			return StatusSeeding
		}
		return StatusCompleted
	}

	// DisallowDataDownload() has no directly-observable flag on
	// *torrent.Torrent; the engine itself sets item.Status to
	// StatusPaused on PauseItem, so a non-global pause never reaches
	// here — this branch exists for the crash-recovery path where
	// resume data rehydrates a torrent whose item is still marked
	// paused from before restart.
	return StatusDownloading
}
