package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/infra/logger"
)

// maxQueueDepth and queueBlockTimeout bound how many in-flight commands
// a Proxy will accept before rejecting new ones (§4.7 back-pressure).
const (
	maxQueueDepth     = 500
	queueBlockTimeout = 5 * time.Second
	readyTimeout      = 30 * time.Second
)

// Proxy is the parent side of the Engine Supervisor: it owns the child
// process, the command/result pipes, the snapshot reader, and
// supervision/restart. Grounded 1:1 on DownloadManagerProxy in
// download_process.py, translated from Python threads into goroutines
// and from multiprocessing.Queue into newline-delimited JSON over
// os/exec pipes.
type Proxy struct {
	engineFlag   string // e.g. "--child=nzb" or "--child=torrent"
	snapshotPath string
	log          *logger.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	nextID   uint64
	pending  map[uint64]chan Result
	inflight int

	ready   chan struct{}
	dead    chan struct{}
	stopped bool

	snapshot *SnapshotReader
}

// NewProxy spawns the child immediately and starts supervising it.
// childExe is the executable to run (normally os.Args[0]); engineFlag
// selects which engine main() the child should run as, matching the
// --child=<engine> convention SPEC_FULL.md specifies.
func NewProxy(childExe, engineFlag, snapshotPath string, log *logger.Logger) (*Proxy, error) {
	p := &Proxy{
		engineFlag:   engineFlag,
		snapshotPath: snapshotPath,
		log:          log,
		pending:      make(map[uint64]chan Result),
		snapshot:     NewSnapshotReader(snapshotPath),
	}
	if err := p.spawn(childExe); err != nil {
		return nil, err
	}
	go p.supervise(childExe)
	return p, nil
}

func (p *Proxy) spawn(childExe string) error {
	cmd := exec.Command(childExe, p.engineFlag, "--snapshot="+p.snapshotPath)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ipc: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ipc: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ipc: start child: %w", err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.stdin = stdin
	p.ready = make(chan struct{})
	p.dead = make(chan struct{})
	p.mu.Unlock()

	go p.readLoop(stdout)
	close(p.ready) // first line of output is meaningful; readiness is "process started"
	return nil
}

func (p *Proxy) readLoop(stdout io.ReadCloser) {
	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var res Result
			if json.Unmarshal(line, &res) == nil {
				p.deliver(res)
			}
		}
		if err != nil {
			break
		}
	}
	p.mu.Lock()
	dead := p.dead
	p.mu.Unlock()
	close(dead)
}

func (p *Proxy) deliver(res Result) {
	p.mu.Lock()
	ch, ok := p.pending[res.ID]
	if ok {
		delete(p.pending, res.ID)
	}
	p.mu.Unlock()
	if ok {
		ch <- res
	}
}

// supervise restarts the child if it exits unexpectedly, waiting up to
// readyTimeout for the replacement to come up before giving up — the
// same 30s ready-event budget the original supervisor uses.
func (p *Proxy) supervise(childExe string) {
	for {
		p.mu.Lock()
		dead := p.dead
		stopped := p.stopped
		p.mu.Unlock()
		if stopped {
			return
		}
		<-dead

		p.mu.Lock()
		stopped = p.stopped
		p.mu.Unlock()
		if stopped {
			return
		}

		if p.log != nil {
			p.log.Warn("ipc child %s exited unexpectedly, restarting", p.engineFlag)
		}
		if err := p.spawn(childExe); err != nil {
			if p.log != nil {
				p.log.Error("ipc child %s restart failed: %v", p.engineFlag, err)
			}
			return
		}

		select {
		case <-p.ready:
		case <-time.After(readyTimeout):
			if p.log != nil {
				p.log.Error("ipc child %s did not become ready in time", p.engineFlag)
			}
			return
		}
	}
}

// Command implements EngineClient.Command: write a framed Command to the
// child's stdin and block for its Result up to MethodTimeout(method),
// with a bounded-queue back-pressure check up front.
func (p *Proxy) Command(ctx context.Context, method string, args ...any) errs.Outcome[json.RawMessage] {
	if err := p.acquireSlot(); err != nil {
		return errs.Retry[json.RawMessage]("queue full", err)
	}
	defer p.releaseSlot()

	encodedArgs := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			return errs.Failed[json.RawMessage](errs.NewIPCError(method, err))
		}
		encodedArgs = append(encodedArgs, data)
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	resCh := make(chan Result, 1)
	p.pending[id] = resCh
	stdin := p.stdin
	p.mu.Unlock()

	data, err := json.Marshal(Command{ID: id, Method: method, Args: encodedArgs})
	if err != nil {
		return errs.Failed[json.RawMessage](errs.NewIPCError(method, err))
	}
	data = append(data, '\n')

	if _, err := stdin.Write(data); err != nil {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		return errs.Failed[json.RawMessage](errs.NewIPCError(method, err))
	}

	timeout := MethodTimeout(method)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case res := <-resCh:
		if res.Error != "" {
			return errs.Failed[json.RawMessage](errs.NewIPCError(method, fmt.Errorf("%s", res.Error)))
		}
		return errs.Ok(res.Result)
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		return errs.Failed[json.RawMessage](errs.NewIPCError(method, ctx.Err()))
	case <-deadline.C:
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		return errs.Retry[json.RawMessage]("timed out", errs.ErrIPCTimeout)
	}
}

func (p *Proxy) acquireSlot() error {
	deadline := time.After(queueBlockTimeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		if p.inflight < maxQueueDepth {
			p.inflight++
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()
		select {
		case <-ticker.C:
		case <-deadline:
			return errs.ErrIPCQueueFull
		}
	}
}

func (p *Proxy) releaseSlot() {
	p.mu.Lock()
	p.inflight--
	p.mu.Unlock()
}

func (p *Proxy) Status(ctx context.Context) (json.RawMessage, error) {
	return p.snapshot.Read().Status, nil
}

func (p *Proxy) Queue(ctx context.Context) (json.RawMessage, error) {
	return p.snapshot.Read().Queue, nil
}

func (p *Proxy) History(ctx context.Context) (json.RawMessage, error) {
	return p.snapshot.Read().History, nil
}

// Close sends "stop" and waits for the child to exit, matching
// DownloadManagerProxy.stop()'s graceful-then-wait shape.
func (p *Proxy) Close() error {
	p.mu.Lock()
	p.stopped = true
	cmd := p.cmd
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	p.Command(ctx, "stop")

	if cmd != nil {
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			return cmd.Process.Kill()
		}
	}
	return nil
}

var _ EngineClient = (*Proxy)(nil)
