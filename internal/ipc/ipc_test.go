package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInProcess_CommandDispatchesToHandler(t *testing.T) {
	c := NewInProcess(nil, nil, nil, nil)
	c.Handle("echo", func(args []json.RawMessage) (any, error) {
		var s string
		json.Unmarshal(args[0], &s)
		return s + "!", nil
	})

	out := c.Command(context.Background(), "echo", "hi")
	if !out.IsOK() {
		t.Fatalf("expected ok, got %+v", out)
	}
	var got string
	json.Unmarshal(out.Value, &got)
	if got != "hi!" {
		t.Fatalf("got %q", got)
	}
}

func TestInProcess_UnknownMethodFails(t *testing.T) {
	c := NewInProcess(nil, nil, nil, nil)
	out := c.Command(context.Background(), "nope")
	if out.IsOK() {
		t.Fatal("expected failure for unknown method")
	}
}

func TestInProcess_StatusQueueHistoryUseProvidedFuncs(t *testing.T) {
	c := NewInProcess(
		func() any { return map[string]int{"n": 1} },
		func() any { return []int{1, 2} },
		func() any { return []string{"a"} },
		nil,
	)
	status, err := c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(status) != `{"n":1}` {
		t.Fatalf("got %s", status)
	}
	queue, _ := c.Queue(context.Background())
	if string(queue) != `[1,2]` {
		t.Fatalf("got %s", queue)
	}
	history, _ := c.History(context.Background())
	if string(history) != `["a"]` {
		t.Fatalf("got %s", history)
	}
}

func TestChildLoop_RespondsAndWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "snap.json")

	loop := NewChildLoop(snapPath,
		func() any { return "ok" },
		func() any { return []int{} },
		func() any { return []int{} },
		nil,
	)
	loop.snapshotInterval = 10 * time.Millisecond
	loop.Handle("ping", func(args []json.RawMessage) (any, error) {
		return "pong", nil
	})

	in := bytes.NewBufferString("")
	cmd := Command{ID: 1, Method: "ping"}
	data, _ := json.Marshal(cmd)
	in.Write(data)
	in.WriteByte('\n')
	stopCmd := Command{ID: 2, Method: "stop"}
	stopData, _ := json.Marshal(stopCmd)
	in.Write(stopData)
	in.WriteByte('\n')

	var out bytes.Buffer
	done := make(chan struct{})
	go func() {
		loop.Run(in, &out)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ChildLoop.Run did not return after stop")
	}

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 result lines, got %d: %s", len(lines), out.String())
	}
	var first Result
	json.Unmarshal(lines[0], &first)
	if first.ID != 1 || string(first.Result) != `"pong"` {
		t.Fatalf("unexpected first result: %+v", first)
	}

	if _, err := os.Stat(snapPath); err != nil {
		t.Fatalf("expected snapshot file to exist: %v", err)
	}
}

func TestSnapshotReader_MissingFileReturnsEmptySentinel(t *testing.T) {
	r := NewSnapshotReader(filepath.Join(t.TempDir(), "missing.json"))
	snap := r.Read()
	if string(snap.Status) != "{}" || snap.TS != 0 {
		t.Fatalf("expected empty sentinel, got %+v", snap)
	}
}

func TestSnapshotWriter_ReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	w := NewSnapshotWriter(path)
	w.Update(json.RawMessage(`{"state":"running"}`), json.RawMessage(`[]`), json.RawMessage(`[]`))
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := NewSnapshotReader(path)
	r.ttl = 0 // force a disk read for this assertion
	snap := r.Read()
	if string(snap.Status) != `{"state":"running"}` {
		t.Fatalf("got %s", snap.Status)
	}
}
