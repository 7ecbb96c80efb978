package torrentengine

import (
	"bytes"
	"context"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
)

// persistResumeData implements §4.6's "every 30s request fastresume
// for each handle; write atomically under a per-info-hash file."
// anacrolix/torrent has no libtorrent-style fastresume blob; the
// durable unit it can reconstruct a torrent from is its own
// metainfo(once known) or the original magnet URI, so that's what gets
// persisted per info-hash instead.
func (e *Engine) persistResumeData() {
	e.mu.Lock()
	type entry struct {
		id   string
		t    *torrent.Torrent
		item *TorrentItem
	}
	entries := make([]entry, 0, len(e.handles))
	for id, t := range e.handles {
		entries = append(entries, entry{id, t, e.items[id]})
	}
	e.mu.Unlock()

	for _, ent := range entries {
		e.saveResumeRecord(ent.id, ent.t, ent.item.Category, ent.item.SavePath, ent.item.Name)
	}
}

func (e *Engine) saveResumeRecord(infoHash string, t *torrent.Torrent, category, savePath, name string) {
	rec := resumeRecord{
		InfoHash: infoHash,
		Category: category,
		SavePath: savePath,
		Name:     name,
	}

	select {
	case <-t.GotInfo():
		var buf bytes.Buffer
		if mi := t.Metainfo(); mi.InfoBytes != nil {
			if err := mi.Write(&buf); err == nil {
				rec.Metainfo = buf.Bytes()
			}
		}
	default:
	}

	if rec.Metainfo == nil {
		rec.MagnetURI = "magnet:?xt=urn:btih:" + infoHash
	}

	if e.store == nil {
		return
	}
	if err := e.store.Save(context.Background(), "torrentengine", resumeKind(infoHash), rec); err != nil && e.log != nil {
		e.log.Warn("torrentengine: failed to persist resume data for %s: %v", infoHash, err)
	}
}

// rehydrate implements §4.6's engine-start recovery: reload every
// persisted resume record and re-add its torrent from metainfo (if
// known) or the magnet URI, so the session survives process restarts.
func (e *Engine) rehydrate() {
	if e.store == nil {
		return
	}
	ids, err := e.store.ListKindPrefix("torrentengine", "resume_")
	if err != nil {
		return
	}

	for _, kind := range ids {
		var rec resumeRecord
		if err := e.store.Get(context.Background(), "torrentengine", kind, &rec); err != nil {
			continue
		}
		e.readd(rec)
	}
}

func (e *Engine) readd(rec resumeRecord) {
	var t *torrent.Torrent
	var err error

	if len(rec.Metainfo) > 0 {
		mi, merr := metainfo.Load(bytes.NewReader(rec.Metainfo))
		if merr == nil {
			t, err = e.client.AddTorrent(mi)
		}
	}
	if t == nil {
		uri := rec.MagnetURI
		if uri == "" {
			uri = "magnet:?xt=urn:btih:" + rec.InfoHash
		}
		t, err = e.client.AddMagnet(uri)
	}
	if err != nil || t == nil {
		if e.log != nil {
			e.log.Warn("torrentengine: failed to rehydrate %s: %v", rec.InfoHash, err)
		}
		return
	}

	item := &TorrentItem{
		ID:       rec.InfoHash,
		InfoHash: rec.InfoHash,
		Name:     rec.Name,
		Category: rec.Category,
		SavePath: rec.SavePath,
		Status:   StatusChecking,
		AddedAt:  timeNow(),
	}

	e.mu.Lock()
	e.handles[rec.InfoHash] = t
	e.items[rec.InfoHash] = item
	e.mu.Unlock()

	go func() {
		select {
		case <-t.GotInfo():
			t.DownloadAll()
		case <-e.stopCh:
		}
	}()
}
