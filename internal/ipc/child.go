package ipc

import (
	"bufio"
	"encoding/json"
	"io"
	"time"
)

// Handler is one child-side method implementation. It returns a JSON-
// marshalable result or an error; ChildLoop turns that into a Result
// frame written back to the parent.
type Handler func(args []json.RawMessage) (any, error)

// StatusFunc/QueueFunc/HistoryFunc/ResumeFunc let the child loop pull the
// engine's current state for the snapshot without the ipc package
// depending on nzbengine/torrentengine.
type (
	StatusFunc  func() any
	QueueFunc   func() any
	HistoryFunc func() any
	ResumeFunc  func()
)

// ChildLoop is the generic body of a child process (§4.7): drain up to
// maxDrainPerTick commands from in, dispatch to handlers, write results
// to out, and on its own timers refresh the snapshot file and flush
// engine resume data. Grounded 1:1 on download_process.py's _child_main/
// _drain_commands loop structure.
type ChildLoop struct {
	handlers map[string]Handler

	snapshot *SnapshotWriter
	status   StatusFunc
	queue    QueueFunc
	history  HistoryFunc
	resume   ResumeFunc

	snapshotInterval time.Duration
	resumeInterval   time.Duration
	maxDrainPerTick  int
}

func NewChildLoop(snapshotPath string, status StatusFunc, queue QueueFunc, history HistoryFunc, resume ResumeFunc) *ChildLoop {
	return &ChildLoop{
		handlers:         make(map[string]Handler),
		snapshot:         NewSnapshotWriter(snapshotPath),
		status:           status,
		queue:            queue,
		history:          history,
		resume:           resume,
		snapshotInterval: 1500 * time.Millisecond,
		resumeInterval:   30 * time.Second,
		maxDrainPerTick:  50,
	}
}

func (c *ChildLoop) Handle(method string, h Handler) {
	c.handlers[method] = h
}

// Run reads newline-delimited Command frames from in and writes
// newline-delimited Result frames to out until a "stop" command is
// received or in is closed. It returns once the child should exit.
func (c *ChildLoop) Run(in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)
	encoder := json.NewEncoder(out)
	commands := make(chan Command, 512)

	go func() {
		defer close(commands)
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				var cmd Command
				if json.Unmarshal(line, &cmd) == nil {
					commands <- cmd
				}
			}
			if err != nil {
				return
			}
		}
	}()

	snapTicker := time.NewTicker(c.snapshotInterval)
	defer snapTicker.Stop()
	resumeTicker := time.NewTicker(c.resumeInterval)
	defer resumeTicker.Stop()

	c.refreshSnapshot()

	for {
		select {
		case <-snapTicker.C:
			c.refreshSnapshot()
		case <-resumeTicker.C:
			if c.resume != nil {
				c.resume()
			}
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			if c.drain(cmd, commands, encoder) {
				return // saw "stop"
			}
		}
	}
}

// drain processes cmd plus up to maxDrainPerTick-1 more commands already
// queued, so a burst of mutations doesn't starve the snapshot/resume
// timers. Returns true if a "stop" command was processed.
func (c *ChildLoop) drain(first Command, commands <-chan Command, encoder *json.Encoder) bool {
	cmd := first
	for i := 0; i < c.maxDrainPerTick; i++ {
		if cmd.Method == "stop" {
			encoder.Encode(Result{ID: cmd.ID, Result: json.RawMessage(`true`)})
			return true
		}
		c.dispatch(cmd, encoder)

		select {
		case next, ok := <-commands:
			if !ok {
				return false
			}
			cmd = next
		default:
			return false
		}
	}
	return false
}

func (c *ChildLoop) dispatch(cmd Command, encoder *json.Encoder) {
	h, ok := c.handlers[cmd.Method]
	if !ok {
		encoder.Encode(Result{ID: cmd.ID, Error: "unknown method: " + cmd.Method})
		return
	}
	value, err := h(cmd.Args)
	if err != nil {
		encoder.Encode(Result{ID: cmd.ID, Error: err.Error()})
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		encoder.Encode(Result{ID: cmd.ID, Error: err.Error()})
		return
	}
	encoder.Encode(Result{ID: cmd.ID, Result: data})
}

func (c *ChildLoop) refreshSnapshot() {
	var status, queue, history json.RawMessage
	if c.status != nil {
		status, _ = json.Marshal(c.status())
	}
	if c.queue != nil {
		queue, _ = json.Marshal(c.queue())
	}
	if c.history != nil {
		history, _ = json.Marshal(c.history())
	}
	c.snapshot.Update(status, queue, history)
	c.snapshot.Flush()
}
