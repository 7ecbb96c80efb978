package nzbfile

import (
	"strings"
	"testing"
)

const sampleNZB = `<?xml version="1.0" encoding="UTF-8"?>
<nzb xmlns="http://www.newznab.com/DTD/2003/nzb">
  <file subject="&quot;show.s01e01.mkv&quot; yEnc (1/2)" poster="poster@example.com" date="1000">
    <groups><group>alt.binaries.test</group></groups>
    <segments>
      <segment number="2" bytes="200">msg2@example</segment>
      <segment number="1" bytes="100">msg1@example</segment>
      <segment number="abc" bytes="50">bad-number@example</segment>
    </segments>
  </file>
</nzb>`

const sampleNZBNoNS = `<?xml version="1.0"?>
<nzb>
  <file subject="plain subject" poster="p" date="1">
    <groups><group>g</group></groups>
    <segments><segment number="1" bytes="5">only@example</segment></segments>
  </file>
</nzb>`

func TestParse_S2(t *testing.T) {
	nzb, err := Parse(strings.NewReader(sampleNZB))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nzb.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(nzb.Files))
	}
	f := nzb.Files[0]
	if len(f.Segments) != 2 {
		t.Fatalf("expected malformed segment skipped, got %d segments", len(f.Segments))
	}
	if f.Segments[0].Number != 1 || f.Segments[0].MessageID != "msg1@example" {
		t.Fatalf("segment[0] = %+v", f.Segments[0])
	}
	if f.Segments[1].Number != 2 {
		t.Fatalf("segment[1] = %+v", f.Segments[1])
	}
	if got, want := f.Filename(), "show.s01e01.mkv"; got != want {
		t.Fatalf("Filename() = %q, want %q", got, want)
	}
	if got, want := nzb.TotalBytes(), int64(300); got != want {
		t.Fatalf("TotalBytes() = %d, want %d", got, want)
	}
}

func TestParse_NoNamespace(t *testing.T) {
	nzb, err := Parse(strings.NewReader(sampleNZBNoNS))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nzb.Files) != 1 || len(nzb.Files[0].Segments) != 1 {
		t.Fatalf("unexpected result: %+v", nzb)
	}
}

func TestParse_NoFiles(t *testing.T) {
	nzb, err := Parse(strings.NewReader(`<nzb></nzb>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nzb.Files) != 0 {
		t.Fatalf("expected empty files, got %d", len(nzb.Files))
	}
}

func TestParse_MalformedXML(t *testing.T) {
	_, err := Parse(strings.NewReader(`<nzb><file`))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFilename_Fallback(t *testing.T) {
	f := File{Subject: "[1/14] random.obfuscated.name yEnc"}
	if got, want := f.Filename(), "random.obfuscated.name"; got != want {
		t.Fatalf("Filename() = %q, want %q", got, want)
	}

	f2 := File{Subject: ""}
	if got, want := f2.Filename(), "unknown"; got != want {
		t.Fatalf("Filename() = %q, want %q", got, want)
	}
}
