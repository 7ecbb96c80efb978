package postprocess

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Magic byte signatures for the archive/recovery formats we care about.
// Obfuscated posts strip or randomize extensions but never touch the
// file header, so sniffing the header is the only reliable detector.
var (
	sigRAR4 = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}
	sigRAR5 = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}
	sig7z   = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	sigZip  = []byte{0x50, 0x4B, 0x03, 0x04}
	sigPar2 = []byte{0x50, 0x41, 0x52, 0x32, 0x00, 0x50, 0x4B, 0x54}
)

type fileKind int

const (
	kindUnknown fileKind = iota
	kindRAR
	kind7z
	kindZip
	kindPar2
)

func sniff(path string) (fileKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return kindUnknown, err
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if n == 0 && err != nil {
		return kindUnknown, err
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, sigRAR5):
		return kindRAR, nil
	case bytes.HasPrefix(header, sigRAR4):
		return kindRAR, nil
	case bytes.HasPrefix(header, sig7z):
		return kind7z, nil
	case bytes.HasPrefix(header, sigZip):
		return kindZip, nil
	case bytes.HasPrefix(header, sigPar2):
		return kindPar2, nil
	default:
		return kindUnknown, nil
	}
}

// deobfuscate walks dir and, for any file whose real type (by magic
// bytes) doesn't match its extension, renames it into the naming scheme
// the corresponding tool expects: RAR volumes, sorted by path, become
// <base>.rar/.r00/.r01/..., where <base> is the first volume's own name;
// the number keeps counting past .r99 (.r100, ...) with no rollover to
// another letter or to .partN.rar names. Everything else is renamed in
// place to the extension its header implies.
func (p *Processor) deobfuscate(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type sniffed struct {
		path string
		kind fileKind
	}
	var rarCandidates []sniffed

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		info, err := ent.Info()
		if err != nil || info.Size() < minCandidateSize {
			continue
		}

		kind, err := sniff(path)
		if err != nil {
			continue
		}

		ext := filepath.Ext(path)
		wantExt, matches := kind.expectedExt(ext)
		if matches {
			continue
		}

		switch kind {
		case kindRAR:
			rarCandidates = append(rarCandidates, sniffed{path: path, kind: kind})
		case kind7z, kindZip, kindPar2:
			if err := renameUnique(path, swapExt(path, wantExt)); err != nil {
				return fmt.Errorf("rename %s: %w", path, err)
			}
		}
	}

	if len(rarCandidates) == 0 {
		return nil
	}

	// Renaming order doesn't matter for unrar (it reads volume headers
	// to find the sequence), but a stable order keeps behavior
	// deterministic across runs and easy to reason about in logs.
	sort.Slice(rarCandidates, func(i, j int) bool { return rarCandidates[i].path < rarCandidates[j].path })

	base := strings.TrimSuffix(filepath.Base(rarCandidates[0].path), filepath.Ext(rarCandidates[0].path))
	dirPath := filepath.Dir(rarCandidates[0].path)

	for i, c := range rarCandidates {
		var newName string
		if i == 0 {
			newName = base + ".rar"
		} else {
			newName = fmt.Sprintf("%s.r%02d", base, i-1)
		}
		if err := renameUnique(c.path, filepath.Join(dirPath, newName)); err != nil {
			return fmt.Errorf("rename %s: %w", c.path, err)
		}
	}
	return nil
}

func (k fileKind) expectedExt(actual string) (want string, matches bool) {
	switch k {
	case kindRAR:
		return ".rar", looksLikeRARExt(actual)
	case kind7z:
		return ".7z", strings.EqualFold(actual, ".7z")
	case kindZip:
		return ".zip", strings.EqualFold(actual, ".zip")
	case kindPar2:
		return ".par2", strings.EqualFold(actual, ".par2")
	default:
		return "", true
	}
}

func looksLikeRARExt(ext string) bool {
	lower := strings.ToLower(ext)
	if lower == ".rar" {
		return true
	}
	if len(lower) == 4 && lower[0:2] == ".r" {
		return lower[2] >= '0' && lower[2] <= '9' && lower[3] >= '0' && lower[3] <= '9'
	}
	return false
}

func swapExt(path, newExt string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + newExt
}

// renameUnique renames src to dst, appending _1, _2, ... to dst's base
// name on collision rather than silently overwriting an existing file.
func renameUnique(src, dst string) error {
	if src == dst {
		return nil
	}
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		return os.Rename(src, dst)
	}
	ext := filepath.Ext(dst)
	base := strings.TrimSuffix(dst, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return os.Rename(src, candidate)
		}
	}
}
