// Package postprocess runs the §4.5 pipeline over a completed download
// directory: deobfuscate renamed archive parts, verify/repair with par2,
// extract archives, clean up leftovers, and apply the final validation
// rules. Grounded on the teacher's internal/processor package, enriched
// with a pure-Go 7z extractor from the wider example pack.
package postprocess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/infra/logger"
)

const (
	par2VerifyTimeout  = time.Hour
	par2RepairTimeout  = 2 * time.Hour
	extractTimeout     = 2 * time.Hour
	minVideoSizeBytes  = 1024
	minCandidateSize   = 1024
)

var videoExts = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".m4v": {},
	".ts": {}, ".m2ts": {}, ".iso": {},
}

// Par2Tool and ArchiveExtractor are the "external tool" abstraction (§9
// design notes): subprocess orchestration is a table entry, not a
// special case, so Processor depends on interfaces rather than concrete
// *exec.Cmd wrappers.
type Par2Tool interface {
	Verify(ctx context.Context, path string) (ok bool, skip bool, err error)
	Repair(ctx context.Context, path string) error
}

type ArchiveExtractor interface {
	Name() string
	CanExtract(path string) bool
	Extract(ctx context.Context, archivePath, destDir string) error
}

// Processor implements nzbengine.PostProcessor.
type Processor struct {
	par2       Par2Tool
	extractors []ArchiveExtractor // tried in order; first match wins
	logger     *logger.Logger
}

func NewProcessor(par2 Par2Tool, extractors []ArchiveExtractor, log *logger.Logger) *Processor {
	return &Processor{par2: par2, extractors: extractors, logger: log}
}

// Process runs the full §4.5 pipeline over dir.
func (p *Processor) Process(ctx context.Context, dir string) error {
	if err := p.deobfuscate(dir); err != nil {
		p.logf("deobfuscate error in %s: %v", dir, err)
	}

	par2Failed := false
	par2Files, err := findPar2Files(dir)
	if err != nil {
		return fmt.Errorf("scan par2 files: %w", err)
	}
	if len(par2Files) > 0 {
		main := pickMainPar2(par2Files)
		verifyCtx, cancel := context.WithTimeout(ctx, par2VerifyTimeout)
		ok, skip, verr := p.par2.Verify(verifyCtx, main)
		cancel()
		switch {
		case skip:
			p.logf("par2 verify skipped (volume-only set): %s", main)
		case verr != nil:
			p.logf("par2 verify unavailable, treating as skipped: %v", verr)
		case !ok:
			repairCtx, rcancel := context.WithTimeout(ctx, par2RepairTimeout)
			rerr := p.par2.Repair(repairCtx, main)
			rcancel()
			if rerr != nil {
				par2Failed = true
				p.logf("par2 repair failed for %s: %v", main, rerr)
			}
		}
	}

	rarFiles, err := findRARFiles(dir)
	if err != nil {
		return fmt.Errorf("scan rar files: %w", err)
	}

	extractErr := error(nil)
	if len(rarFiles) > 0 {
		first := findFirstRAR(rarFiles)
		extractErr = p.extractWithFallback(ctx, first, dir)
	} else {
		for _, ext := range []string{".zip", ".7z"} {
			paths, _ := findByExt(dir, ext)
			for _, path := range paths {
				if extractErr = p.extractWithFallback(ctx, path, dir); extractErr != nil {
					break
				}
			}
			if extractErr != nil {
				break
			}
		}
	}
	if extractErr != nil {
		return extractErr
	}

	hasVideo, err := dirHasVideo(dir)
	if err != nil {
		return fmt.Errorf("scan for video: %w", err)
	}
	if hasVideo {
		if err := cleanup(dir); err != nil {
			p.logf("cleanup error in %s: %v", dir, err)
		}
	}

	noArchives := len(rarFiles) == 0
	if zips, _ := findByExt(dir, ".zip"); len(zips) > 0 {
		noArchives = false
	}
	if sevenZs, _ := findByExt(dir, ".7z"); len(sevenZs) > 0 {
		noArchives = false
	}

	if par2Failed && noArchives && !hasVideo {
		return errs.NewPostProcessError(dir, "par2 repair failed, no archives, no video")
	}
	if noArchives && !hasVideo && len(par2Files) > 0 {
		return errs.NewPostProcessError(dir, "recovery-only download: par2 present but no archive or video")
	}
	return nil
}

// extractWithFallback tries each configured extractor in order until one
// claims the file, returning the *first* extractor's canonicalized error
// if every attempt fails (§4.5 step 3: "return the unrar error, not the
// 7z fallback banner").
func (p *Processor) extractWithFallback(ctx context.Context, archivePath, destDir string) error {
	var firstErr error
	for _, ext := range p.extractors {
		if !ext.CanExtract(archivePath) {
			continue
		}
		extractCtx, cancel := context.WithTimeout(ctx, extractTimeout)
		err := ext.Extract(extractCtx, archivePath, destDir)
		cancel()
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return fmt.Errorf("no extractor claimed %s", filepath.Base(archivePath))
}

func (p *Processor) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(format, args...)
	}
}

func dirHasVideo(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(ent.Name()))
		if _, ok := videoExts[ext]; !ok {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		if info.Size() >= minVideoSizeBytes {
			return true, nil
		}
	}
	return false, nil
}

func findByExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(ent.Name()), ext) {
			out = append(out, filepath.Join(dir, ent.Name()))
		}
	}
	return out, nil
}
