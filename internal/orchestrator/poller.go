package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/datallboy/gonzb/internal/configstore"
)

// ImportFunc performs the post-grab import of a completed download
// (moving/linking files into the library root). It runs off the
// poller's bounded worker pool so a slow import can't stall the next
// poll tick.
type ImportFunc func(ctx context.Context, entry ClientHistoryEntry) error

// Poller implements §4.10 step 8: on a ~90s cadence, fetch each
// client's live queue, diff it against the requested-queue index, and
// for every id that disappeared, look up its history entry — import on
// completion, blocklist on failure.
type Poller struct {
	orch        *Orchestrator
	importFn    ImportFunc
	interval    time.Duration
	importSlots chan struct{}
}

// NewPoller builds a Poller with the default 90s cadence and a bounded
// import concurrency (maxConcurrentImports).
func NewPoller(orch *Orchestrator, importFn ImportFunc, maxConcurrentImports int) *Poller {
	if maxConcurrentImports <= 0 {
		maxConcurrentImports = 2
	}
	return &Poller{
		orch:        orch,
		importFn:    importFn,
		interval:    90 * time.Second,
		importSlots: make(chan struct{}, maxConcurrentImports),
	}
}

// Run blocks until ctx is canceled, polling on Poller.interval.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	var requested []configstore.RequestedQueueEntry
	err := p.orch.store.Get(ctx, p.orch.instanceID, configstore.KindRequestedQueue, &requested)
	if err != nil && !errors.Is(err, configstore.ErrNotFound) {
		p.orch.logf("poller: load requested queue: %v", err)
		return
	}
	if len(requested) == 0 {
		return
	}
	wanted := make(map[string]configstore.RequestedQueueEntry, len(requested))
	for _, r := range requested {
		wanted[r.QueueID] = r
	}

	for _, client := range p.orch.clients {
		if !client.Enabled() {
			continue
		}
		live, err := client.Queue(ctx)
		if err != nil {
			p.orch.logf("poller: %s queue: %v", client.Name(), err)
			continue
		}
		liveIDs := make(map[string]bool, len(live))
		for _, item := range live {
			liveIDs[item.ID] = true
		}

		var history []ClientHistoryEntry
		var historyLoaded bool
		for id, entry := range wanted {
			if liveIDs[id] {
				continue // still in progress
			}
			if !historyLoaded {
				history, err = client.History(ctx)
				if err != nil {
					p.orch.logf("poller: %s history: %v", client.Name(), err)
					break
				}
				historyLoaded = true
			}
			hist, ok := findHistoryEntry(history, id)
			if !ok {
				continue // disappeared without a history record yet; check again next tick
			}
			p.handleDisappeared(ctx, entry, hist)
			delete(wanted, id)
		}
	}

	remaining := make([]configstore.RequestedQueueEntry, 0, len(wanted))
	for _, r := range requested {
		if _, ok := wanted[r.QueueID]; ok {
			remaining = append(remaining, r)
		}
	}
	if len(remaining) != len(requested) {
		if err := p.orch.store.Save(ctx, p.orch.instanceID, configstore.KindRequestedQueue, remaining); err != nil {
			p.orch.logf("poller: save requested queue: %v", err)
		}
	}
}

func findHistoryEntry(history []ClientHistoryEntry, id string) (ClientHistoryEntry, bool) {
	for _, h := range history {
		if h.ID == id {
			return h, true
		}
	}
	return ClientHistoryEntry{}, false
}

func (p *Poller) handleDisappeared(ctx context.Context, requested configstore.RequestedQueueEntry, hist ClientHistoryEntry) {
	if hist.Completed {
		if p.importFn == nil {
			return
		}
		select {
		case p.importSlots <- struct{}{}:
		default:
			p.orch.logf("poller: import pool saturated, dropping import for %q this tick", hist.Title)
			return
		}
		go func() {
			defer func() { <-p.importSlots }()
			if err := p.importFn(ctx, hist); err != nil {
				p.orch.logf("poller: import failed for %q: %v", hist.Title, err)
			}
		}()
		return
	}

	reason := hist.FailureReason
	if reason == "" {
		reason = "download failed"
	}
	if err := p.orch.Blocklist(ctx, requested.Title, requested.Title, 0, reason); err != nil {
		p.orch.logf("poller: blocklist %q: %v", requested.Title, err)
	}
}
