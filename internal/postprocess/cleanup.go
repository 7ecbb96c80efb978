package postprocess

import (
	"os"
	"path/filepath"
	"strings"
)

// leftover extensions removed once at least one video file is present,
// grounded on the teacher's cleanupExtensions map shape in
// internal/processor/fs.go.
var cleanupExts = map[string]struct{}{
	".par2": {}, ".nfo": {}, ".sfv": {}, ".srr": {}, ".srs": {},
}

// cleanup removes archive volumes, par2 sets and release metadata once
// extraction has produced at least one usable video file (§4.5 step 4:
// "only clean up when there's something worth keeping").
func cleanup(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		lower := strings.ToLower(name)
		ext := filepath.Ext(lower)

		remove := false
		switch {
		case strings.HasSuffix(lower, ".rar") || looksLikeRARExt(ext):
			remove = true
		default:
			if _, ok := cleanupExts[ext]; ok {
				remove = true
			}
		}
		if remove {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}
