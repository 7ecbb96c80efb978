package nzbengine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/infra/logger"
	"github.com/segmentio/ksuid"
)

// Engine drains a FIFO queue of Items with one background worker, exactly
// as the teacher's QueueManager drives one download goroutine at a time —
// generalized here to the segment-level state machine of §4.4 rather than
// the teacher's release-level one.
type Engine struct {
	mu     sync.RWMutex
	queue  []*Item
	active *Item

	dispatcher    ArticleFetcher
	postProcessor PostProcessor
	config        Config
	writer        *fileWriter
	bandwidth     *BandwidthHistory
	speed         *speedLimiter
	history       *historyRing
	logger        *logger.Logger
	onPersist     func(*Item)

	stopFunc   context.CancelFunc
	newJobChan chan struct{}
}

// SetPersistHook installs the callback runItem invokes every
// persistEvery completed segments, so a ConfigStore-backed caller can
// snapshot queue state to disk without the engine depending on it
// directly.
func (e *Engine) SetPersistHook(fn func(*Item)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPersist = fn
}

func NewEngine(dispatcher ArticleFetcher, pp PostProcessor, cfg Config, log *logger.Logger) *Engine {
	return &Engine{
		dispatcher:    dispatcher,
		postProcessor: pp,
		config:        cfg,
		writer:        newFileWriter(),
		bandwidth:     NewBandwidthHistory(),
		speed:         newSpeedLimiter(),
		history:       newHistoryRing(),
		logger:        log,
		newJobChan:    make(chan struct{}, 1),
	}
}

// Add resolves NZB content at enqueue time and appends a new queued Item
// (§3 Download Item: "mandatory NZB XML content, resolved at enqueue").
func (e *Engine) Add(name, category string, priority int, nzbData []byte) (*Item, error) {
	if len(nzbData) == 0 {
		return nil, errs.NewConfigError("nzb_data", "empty NZB content")
	}
	item := &Item{
		ID:       ksuid.New().String(),
		Name:     name,
		Category: category,
		Priority: priority,
		NZBData:  nzbData,
		State:    StateQueued,
		AddedAt:  time.Now(),
	}

	e.mu.Lock()
	e.queue = append(e.queue, item)
	e.sortQueueLocked()
	e.mu.Unlock()

	select {
	case e.newJobChan <- struct{}{}:
	default:
	}
	return item, nil
}

// sortQueueLocked keeps queued items ordered by priority ascending, then
// insertion order — callers must hold e.mu.
func (e *Engine) sortQueueLocked() {
	sort.SliceStable(e.queue, func(i, j int) bool {
		return e.queue[i].Priority < e.queue[j].Priority
	})
}

// Start runs the single worker loop until ctx is cancelled: pick the
// first queued (or resumed) item, run it to completion or failure, move
// it to history, repeat.
func (e *Engine) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.stopFunc = cancel
	e.mu.Unlock()

	for {
		next := e.pickNext()
		if next == nil {
			select {
			case <-e.newJobChan:
				continue
			case <-loopCtx.Done():
				return
			}
		}

		select {
		case <-loopCtx.Done():
			return
		default:
		}

		itemCtx, itemCancel := context.WithCancel(loopCtx)
		e.mu.Lock()
		next.cancel = itemCancel
		e.active = next
		e.mu.Unlock()

		err := e.runItem(itemCtx, next)

		itemCancel()
		e.mu.Lock()
		e.active = nil
		e.mu.Unlock()

		if err != nil {
			if err == errPaused {
				continue // item snapshot already updated to paused by the worker
			}
			e.finishItem(next, StateFailed, err)
		} else {
			e.finishItem(next, StateCompleted, nil)
		}
	}
}

// pickNext returns the first item eligible to run: a queued item, or one
// already downloading (resumed after a pause observed at a segment
// boundary within runItem itself).
func (e *Engine) pickNext() *Item {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, it := range e.queue {
		if it.State == StateQueued || it.State == StateDownloading {
			return it
		}
	}
	return nil
}

func (e *Engine) finishItem(item *Item, final State, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	item.State = final
	if final == StateCompleted {
		item.CompletedAt = time.Now()
		item.SpeedBps = 0
		item.ETASeconds = 0
	} else if err != nil {
		item.ErrorMessage = err.Error()
	}

	e.history.Push(HistoryEntry{
		ID:          item.ID,
		Name:        item.Name,
		Category:    item.Category,
		CompletedAt: item.CompletedAt,
		State:       final,
		ContentPath: item.finalDir,
		Size:        item.TotalBytes,
	})

	for i, it := range e.queue {
		if it.ID == item.ID {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			break
		}
	}
}

// Pause transitions a downloading item to paused; observed at the next
// segment boundary inside runItem (§4.4 "Pause observable only at
// segment boundaries").
func (e *Engine) Pause(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range e.queue {
		if it.ID == id && it.State == StateDownloading {
			it.State = StatePaused
			return true
		}
	}
	return false
}

// Resume transitions a paused item back to downloading and wakes the
// worker loop.
func (e *Engine) Resume(id string) bool {
	e.mu.Lock()
	found := false
	for _, it := range e.queue {
		if it.ID == id && it.State == StatePaused {
			it.State = StateDownloading
			found = true
			break
		}
	}
	e.mu.Unlock()

	if found {
		select {
		case e.newJobChan <- struct{}{}:
		default:
		}
	}
	return found
}

// Remove cancels (if running) and drops id from the queue immediately;
// in-flight segment fetches for it may still complete but their output
// is discarded (§5 "Cancellation/timeouts").
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, it := range e.queue {
		if it.ID == id {
			if it.cancel != nil {
				it.cancel()
			}
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (e *Engine) SetSpeedLimit(bps int64) { e.speed.SetLimit(bps) }
func (e *Engine) SpeedLimit() int64       { return e.speed.Limit() }

// GetQueue returns a point-in-time snapshot of every queued item.
func (e *Engine) GetQueue() []Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Snapshot, len(e.queue))
	for i, it := range e.queue {
		out[i] = it.snapshot()
	}
	return out
}

func (e *Engine) GetHistory() []HistoryEntry {
	return e.history.All()
}

func (e *Engine) GetItem(id string) (Snapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, it := range e.queue {
		if it.ID == id {
			return it.snapshot(), true
		}
	}
	return Snapshot{}, false
}

// Stop cancels the worker loop and the currently active item, if any.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.logger != nil {
		e.logger.Warn("nzbengine: shutdown requested")
	}
	if e.stopFunc != nil {
		e.stopFunc()
	}
	if e.active != nil && e.active.cancel != nil {
		e.active.cancel()
	}
}

func (e *Engine) resetStuckOnStartup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range e.queue {
		if it.State == StateDownloading {
			it.State = StateQueued
		}
	}
}
