package ipc

import (
	"context"
	"encoding/json"

	"github.com/datallboy/gonzb/internal/errs"
)

// InProcess is the other implementation of EngineClient: it calls engine
// methods directly in the current process instead of round-tripping
// through a child's stdio pipes. The orchestrator uses this when an
// operator runs gonzb in single-process mode (no child isolation), and
// tests use it to exercise orchestrator logic without spawning anything.
type InProcess struct {
	handlers map[string]Handler
	status   StatusFunc
	queue    QueueFunc
	history  HistoryFunc
	closeFn  func() error
}

func NewInProcess(status StatusFunc, queue QueueFunc, history HistoryFunc, closeFn func() error) *InProcess {
	return &InProcess{
		handlers: make(map[string]Handler),
		status:   status,
		queue:    queue,
		history:  history,
		closeFn:  closeFn,
	}
}

func (c *InProcess) Handle(method string, h Handler) {
	c.handlers[method] = h
}

func (c *InProcess) Status(ctx context.Context) (json.RawMessage, error) {
	if c.status == nil {
		return EmptySnapshot().Status, nil
	}
	return json.Marshal(c.status())
}

func (c *InProcess) Queue(ctx context.Context) (json.RawMessage, error) {
	if c.queue == nil {
		return EmptySnapshot().Queue, nil
	}
	return json.Marshal(c.queue())
}

func (c *InProcess) History(ctx context.Context) (json.RawMessage, error) {
	if c.history == nil {
		return EmptySnapshot().History, nil
	}
	return json.Marshal(c.history())
}

func (c *InProcess) Command(ctx context.Context, method string, args ...any) errs.Outcome[json.RawMessage] {
	h, ok := c.handlers[method]
	if !ok {
		return errs.Failed[json.RawMessage](errs.NewIPCError(method, errUnknownMethod))
	}

	encoded := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			return errs.Failed[json.RawMessage](errs.NewIPCError(method, err))
		}
		encoded = append(encoded, data)
	}

	value, err := h(encoded)
	if err != nil {
		return errs.Failed[json.RawMessage](errs.NewIPCError(method, err))
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errs.Failed[json.RawMessage](errs.NewIPCError(method, err))
	}
	return errs.Ok(json.RawMessage(data))
}

func (c *InProcess) Close() error {
	if c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}

var errUnknownMethod = errUnknown("ipc: unknown method")

type errUnknown string

func (e errUnknown) Error() string { return string(e) }

var _ EngineClient = (*InProcess)(nil)
