package nzbengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/nzbfile"
	"github.com/datallboy/gonzb/internal/yenc"
)

// errPaused signals runItem returned because the item was paused at a
// segment boundary, not because it failed — Start must not mark it
// failed or push a history entry for it.
var errPaused = errors.New("nzbengine: item paused")

// persistEvery controls how often (in completed segments) the worker
// asks the caller to snapshot state to disk (§4.4 step 6: "every 50
// segments, persist state").
const persistEvery = 50

// runItem is the §4.4 "Per-item algorithm (authoritative)", steps 1–9.
func (e *Engine) runItem(ctx context.Context, item *Item) error {
	item.State = StateDownloading
	item.StartedAt = time.Now()
	defer e.writer.closeAll()

	nzb, err := nzbfile.Parse(bytes.NewReader(item.NZBData))
	if err != nil {
		return err
	}

	item.safeName = safeName(item.Name, item.ID)
	item.tempDir = filepath.Join(e.config.TempDir, item.safeName)
	item.finalDir = filepath.Join(e.config.finalDirFor(item.Category), item.safeName)

	if err := os.MkdirAll(item.tempDir, 0755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	item.TotalBytes = nzb.TotalBytes()
	item.TotalSegments = nzb.TotalSegments()
	item.TotalFiles = len(nzb.Files)

	var runBytes int64
	runStart := time.Now()
	segmentsDone := 0

	for _, f := range nzb.Files {
		partPath := filepath.Join(item.tempDir, f.Filename()+".part")
		if err := e.writer.preAllocate(partPath, f.TotalBytes()); err != nil {
			return fmt.Errorf("preallocate %s: %w", f.Filename(), err)
		}

		// Segments arrive in ascending number order from the parser
		// (§3 invariant); the running offset is the sum of prior
		// segments' claimed sizes, so each WriteAt lands at the byte
		// range the NZB promised regardless of fetch order.
		var offset int64

		for _, seg := range f.Segments {
			e.mu.RLock()
			paused := item.State == StatePaused
			e.mu.RUnlock()
			if paused {
				return errPaused
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			data, pool, fetchErr := e.dispatcher.Dispatch(seg.MessageID, f.Groups)
			if fetchErr != nil {
				if errors.Is(fetchErr, errs.ErrArticleMissing) {
					item.CompletedSegments.Add(1)
					segmentsDone++
					offset += seg.Bytes
					continue
				}
				return fetchErr
			}

			decoded, _, _ := yenc.DecodeBytes(data)
			if len(decoded) > 0 {
				if err := e.writer.WriteAt(partPath, decoded, offset); err != nil {
					return fmt.Errorf("write segment %d: %w", seg.Number, err)
				}
			}
			offset += seg.Bytes

			n := int64(len(decoded))
			item.DownloadedBytes.Add(n)
			item.CompletedSegments.Add(1)
			segmentsDone++
			runBytes += n

			if pool != "" {
				e.bandwidth.Add(pool, n, time.Now())
			}
			e.speed.Consume(n)

			elapsed := time.Since(runStart).Seconds()
			if elapsed > 0 {
				item.SpeedBps = float64(runBytes) / elapsed
				if item.SpeedBps > 0 {
					remaining := item.TotalBytes - item.DownloadedBytes.Load()
					item.ETASeconds = int64(float64(remaining) / item.SpeedBps)
					if item.ETASeconds < 0 {
						item.ETASeconds = 0
					}
				}
			}

			if segmentsDone%persistEvery == 0 && e.onPersist != nil {
				e.onPersist(item)
			}
		}

		if err := e.writer.closeFile(partPath, offset); err != nil {
			return fmt.Errorf("close %s: %w", f.Filename(), err)
		}
		finalPath := filepath.Join(item.tempDir, f.Filename())
		if err := os.Rename(partPath, finalPath); err != nil {
			return fmt.Errorf("rename %s: %w", f.Filename(), err)
		}
		item.CompletedFiles++
	}

	item.State = StateExtracting
	if e.postProcessor != nil {
		if err := e.postProcessor.Process(ctx, item.tempDir); err != nil {
			return err
		}
	}

	if err := mergeDir(item.tempDir, item.finalDir); err != nil {
		return fmt.Errorf("finalize move: %w", err)
	}
	return nil
}

// mergeDir moves every entry from src into dst, creating dst if needed,
// then removes the now-empty temp directory.
func mergeDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		if err := os.Rename(filepath.Join(src, ent.Name()), filepath.Join(dst, ent.Name())); err != nil {
			return err
		}
	}
	return os.Remove(src)
}

// safeName derives the per-download directory name (§4.4 step 4): keep
// alphanumerics, space, '.', '_', '-'; truncate to 100; fall back to id.
func safeName(name, id string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return id
	}
	return s
}
