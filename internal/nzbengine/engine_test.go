package nzbengine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeDispatcher hands back a pre-encoded yEnc article per message id,
// standing in for *nntp.Dispatcher so the worker loop can be exercised
// without real sockets.
type fakeDispatcher struct {
	bodies map[string][]byte
}

func (f *fakeDispatcher) Dispatch(messageID string, groups []string) ([]byte, string, error) {
	b, ok := f.bodies[messageID]
	if !ok {
		return nil, "", fmt.Errorf("fakeDispatcher: no body for %s", messageID)
	}
	return b, "FAKE", nil
}

// yencEncode is a minimal test-only encoder producing output DecodeBytes
// will invert, mirroring internal/yenc's own test fixture.
func yencEncode(data []byte, name string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=ybegin part=1 line=128 size=%d name=%s\r\n", len(data), name)
	for _, c := range data {
		v := c + 42
		switch v {
		case 0x00, 0x0A, 0x0D, 0x3D:
			buf.WriteByte('=')
			buf.WriteByte(v + 64)
		default:
			buf.WriteByte(v)
		}
	}
	buf.WriteString("\r\n=yend size=")
	fmt.Fprintf(&buf, "%d\r\n", len(data))
	return buf.Bytes()
}

const sampleNZB = `<?xml version="1.0" encoding="UTF-8"?>
<nzb xmlns="http://www.newznab.com/DTD/2003/nzb">
  <file subject="&quot;hello.txt&quot; yEnc (1/1)" poster="p" date="1">
    <groups><group>alt.binaries.test</group></groups>
    <segments>
      <segment number="1" bytes="%d">seg1@example</segment>
    </segments>
  </file>
</nzb>`

func TestEngine_DownloadsSingleSegmentItem(t *testing.T) {
	dir := t.TempDir()
	tempDir := filepath.Join(dir, "incomplete")
	finalDir := filepath.Join(dir, "complete")

	payload := []byte("hello world")
	encoded := yencEncode(payload, "hello.txt")

	nzbXML := fmt.Sprintf(sampleNZB, len(payload))

	fd := &fakeDispatcher{bodies: map[string][]byte{"seg1@example": encoded}}
	eng := NewEngine(fd, nil, Config{TempDir: tempDir, FinalDir: finalDir}, nil)

	item, err := eng.Add("hello release", "misc", 0, []byte(nzbXML))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		eng.Start(ctx)
		close(done)
	}()

	deadline := time.After(4 * time.Second)
	for {
		hist := eng.GetHistory()
		if len(hist) == 1 {
			if hist[0].ID != item.ID {
				t.Fatalf("history entry id = %s, want %s", hist[0].ID, item.ID)
			}
			if hist[0].State != StateCompleted {
				t.Fatalf("final state = %s, want completed", hist[0].State)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for item to complete")
		case <-time.After(10 * time.Millisecond):
		}
	}
	eng.Stop()
	<-done

	data, err := os.ReadFile(filepath.Join(finalDir, safeName("hello release", item.ID), "hello.txt"))
	if err != nil {
		t.Fatalf("read final file: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("final file content = %q, want %q", data, "hello world")
	}
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"Show.S01E01 [1080p]": "Show.S01E01 1080p",
		"":                    "",
	}
	for in, want := range cases {
		if in == "" {
			if got := safeName(in, "fallback-id"); got != "fallback-id" {
				t.Fatalf("safeName(%q) = %q, want fallback id", in, got)
			}
			continue
		}
		if got := safeName(in, "id"); got != want {
			t.Fatalf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSafeName_Truncates(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	got := safeName(string(long), "id")
	if len(got) != 100 {
		t.Fatalf("safeName truncated length = %d, want 100", len(got))
	}
}

func TestEngine_PauseAndResumeTransitions(t *testing.T) {
	eng := NewEngine(&fakeDispatcher{bodies: map[string][]byte{}}, nil, Config{TempDir: t.TempDir(), FinalDir: t.TempDir()}, nil)
	item, _ := eng.Add("x", "misc", 0, []byte("<nzb></nzb>"))
	item.State = StateDownloading

	if !eng.Pause(item.ID) {
		t.Fatal("Pause returned false for a downloading item")
	}
	if item.State != StatePaused {
		t.Fatalf("state after Pause = %s, want paused", item.State)
	}
	if !eng.Resume(item.ID) {
		t.Fatal("Resume returned false for a paused item")
	}
	if item.State != StateDownloading {
		t.Fatalf("state after Resume = %s, want downloading", item.State)
	}
}

func TestEngine_RemoveCancelsAndDrops(t *testing.T) {
	eng := NewEngine(&fakeDispatcher{}, nil, Config{TempDir: t.TempDir(), FinalDir: t.TempDir()}, nil)
	item, _ := eng.Add("x", "misc", 0, []byte("<nzb></nzb>"))

	cancelled := false
	item.cancel = func() { cancelled = true }

	if !eng.Remove(item.ID) {
		t.Fatal("Remove returned false")
	}
	if !cancelled {
		t.Fatal("Remove did not invoke the item's cancel func")
	}
	if len(eng.GetQueue()) != 0 {
		t.Fatal("item still present in queue after Remove")
	}
}
