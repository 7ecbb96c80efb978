package postprocess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var errRepairFailed = errors.New("par2 repair failed")

type fakePar2 struct {
	ok   bool
	skip bool
	verr error
	rerr error
}

func (f *fakePar2) Verify(ctx context.Context, path string) (bool, bool, error) {
	return f.ok, f.skip, f.verr
}

func (f *fakePar2) Repair(ctx context.Context, path string) error {
	return f.rerr
}

type fakeExtractor struct {
	ext string
	err error
	ran bool
}

func (f *fakeExtractor) Name() string { return "fake" }
func (f *fakeExtractor) CanExtract(path string) bool {
	return filepath.Ext(path) == f.ext
}
func (f *fakeExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	f.ran = true
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(filepath.Join(destDir, "movie.mkv"), make([]byte, minVideoSizeBytes+10), 0o644)
}

func TestProcess_ExtractsRARAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	body := make([]byte, minCandidateSize+10)
	if err := os.WriteFile(filepath.Join(dir, "release.rar"), body, 0o644); err != nil {
		t.Fatal(err)
	}

	ext := &fakeExtractor{ext: ".rar"}
	p := NewProcessor(&fakePar2{ok: true}, []ArchiveExtractor{ext}, nil)

	if err := p.Process(context.Background(), dir); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !ext.ran {
		t.Fatal("expected the rar extractor to run")
	}
	if _, err := os.Stat(filepath.Join(dir, "movie.mkv")); err != nil {
		t.Fatalf("expected movie.mkv to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "release.rar")); !os.IsNotExist(err) {
		t.Fatal("expected release.rar to be cleaned up after successful extraction with video present")
	}
}

func TestProcess_FailsWhenPar2RepairFailsAndNothingUsable(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "recovery.par2"), append(append([]byte{}, sigPar2...), 0, 0, 0), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProcessor(&fakePar2{ok: false, rerr: errRepairFailed}, nil, nil)

	err := p.Process(context.Background(), dir)
	if err == nil {
		t.Fatal("expected a post-process error when par2 repair fails with no archive/video")
	}
}

func TestProcess_SkipsValidationWhenVolumeOnlyPar2Set(t *testing.T) {
	dir := t.TempDir()
	body := make([]byte, minCandidateSize+10)
	if err := os.WriteFile(filepath.Join(dir, "release.rar"), append(append([]byte{}, sigRAR4...), body...), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "recovery.vol00+03.par2"), append(append([]byte{}, sigPar2...), 0, 0, 0), 0o644); err != nil {
		t.Fatal(err)
	}

	ext := &fakeExtractor{ext: ".rar"}
	p := NewProcessor(&fakePar2{skip: true}, []ArchiveExtractor{ext}, nil)

	if err := p.Process(context.Background(), dir); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !ext.ran {
		t.Fatal("expected extraction to proceed despite the par2 verify being skipped")
	}
}

func TestProcess_NoArchiveNoVideoButPar2Present_Fails(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "recovery.par2"), append(append([]byte{}, sigPar2...), 0, 0, 0), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProcessor(&fakePar2{ok: true}, nil, nil)
	err := p.Process(context.Background(), dir)
	if err == nil {
		t.Fatal("expected failure: par2 present but no archive and no video ever materialized")
	}
}
