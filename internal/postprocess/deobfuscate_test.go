package postprocess

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestSniff_DetectsKnownSignatures(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		data []byte
		want fileKind
	}{
		{"a.bin", append(sigRAR4, make([]byte, 100)...), kindRAR},
		{"b.bin", append(sigRAR5, make([]byte, 100)...), kindRAR},
		{"c.bin", append(sig7z, make([]byte, 100)...), kind7z},
		{"d.bin", append(sigZip, make([]byte, 100)...), kindZip},
		{"e.bin", append(sigPar2, make([]byte, 100)...), kindPar2},
		{"f.bin", []byte("not an archive at all"), kindUnknown},
	}
	for _, c := range cases {
		path := writeFile(t, dir, c.name, c.data)
		got, err := sniff(path)
		if err != nil {
			t.Fatalf("sniff(%s): %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("sniff(%s) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDeobfuscate_RenamesObfuscatedRARSet(t *testing.T) {
	dir := t.TempDir()

	body := make([]byte, minCandidateSize+10)
	vol0 := append(append([]byte{}, sigRAR4...), body...)
	vol1 := append(append([]byte{}, sigRAR4...), body...)

	writeFile(t, dir, "aaaaaaaa.bin", vol0)
	writeFile(t, dir, "bbbbbbbb.bin", vol1)

	p := &Processor{}
	if err := p.deobfuscate(dir); err != nil {
		t.Fatalf("deobfuscate: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}

	hasRar := false
	hasR00 := false
	for _, n := range names {
		if filepath.Ext(n) == ".rar" {
			hasRar = true
		}
		if filepath.Ext(n) == ".r00" {
			hasR00 = true
		}
	}
	if !hasRar || !hasR00 {
		t.Fatalf("expected one .rar and one .r00 file, got %v", names)
	}
}

func TestDeobfuscate_RenamesNonRARInPlace(t *testing.T) {
	dir := t.TempDir()
	body := make([]byte, minCandidateSize+10)
	data := append(append([]byte{}, sigZip...), body...)
	writeFile(t, dir, "mystery.dat", data)

	p := &Processor{}
	if err := p.deobfuscate(dir); err != nil {
		t.Fatalf("deobfuscate: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	found := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".zip" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a renamed .zip file, entries: %v", entries)
	}
}

func TestLooksLikeRARExt(t *testing.T) {
	cases := map[string]bool{
		".rar": true, ".r00": true, ".r99": true,
		".zip": false, ".part1.rar": false, "": false,
	}
	for ext, want := range cases {
		if got := looksLikeRARExt(ext); got != want {
			t.Fatalf("looksLikeRARExt(%q) = %v, want %v", ext, got, want)
		}
	}
}
