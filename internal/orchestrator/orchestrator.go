package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datallboy/gonzb/internal/configstore"
	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/indexerclient"
	"github.com/datallboy/gonzb/internal/infra/logger"
	"github.com/datallboy/gonzb/internal/scoring"
)

// IndexerEntry pairs a configured indexer client with the priority
// spec.md §4.10 step 5 sorts picks by.
type IndexerEntry struct {
	Client   *indexerclient.Client
	Name     string
	Priority int
	Enabled  bool
}

// Orchestrator implements §4.10 for one instance: it owns the set of
// configured indexers and download clients and drives search → score →
// submit → track → import/blocklist against the instance's ConfigStore
// documents. Grounded on the teacher's internal/app wiring for how a
// per-instance component bundles its collaborators (store, pool,
// logger) behind one constructor — the teacher has no orchestrator of
// its own to adapt, since gonzb pulls from a single fixed provider set
// rather than choosing among indexers/clients per release.
type Orchestrator struct {
	instanceID string
	store      configstore.Store
	indexers   []IndexerEntry
	clients    []DownloadClient
	log        *logger.Logger

	mu          sync.Mutex
	searchLog   []SearchEvent
	grabLog     []GrabEvent
	searchLimit int
}

func New(instanceID string, store configstore.Store, indexers []IndexerEntry, clients []DownloadClient, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		instanceID:  instanceID,
		store:       store,
		indexers:    indexers,
		clients:     clients,
		log:         log,
		searchLimit: 200,
	}
}

func buildQuery(item LibraryItem) string {
	if item.Year > 0 {
		return fmt.Sprintf("%s %d", item.Title, item.Year)
	}
	return item.Title
}

type indexerPick struct {
	entry     IndexerEntry
	cand      indexerclient.Candidate
	score     int
	breakdown string
	ok        bool
}

// ProcessItem implements the full §4.10 per-item flow: search every
// enabled indexer in parallel, filter by blocklist, pick each indexer's
// best candidate at or above its profile's minimum score, select the
// overall winner by (priority ASC, score DESC), submit it to the first
// enabled client, and record the grab.
func (o *Orchestrator) ProcessItem(ctx context.Context, item LibraryItem) errs.Outcome[GrabEvent] {
	instance, err := o.loadInstance(ctx)
	if err != nil {
		return errs.Failed[GrabEvent](err)
	}
	blocked, err := o.blocklistSet(ctx)
	if err != nil {
		return errs.Failed[GrabEvent](err)
	}

	query := buildQuery(item)
	enabled := make([]IndexerEntry, 0, len(o.indexers))
	for _, ix := range o.indexers {
		if ix.Enabled {
			enabled = append(enabled, ix)
		}
	}
	if len(enabled) == 0 {
		return errs.Rejected[GrabEvent]("no enabled indexers")
	}

	picks := make([]indexerPick, len(enabled))
	g, gctx := errgroup.WithContext(ctx)
	for i, ix := range enabled {
		i, ix := i, ix
		g.Go(func() error {
			start := time.Now()
			raw := ix.Client.Search(gctx, query, item.Categories)
			o.recordSearch(SearchEvent{Indexer: ix.Name, Query: query, Latency: time.Since(start), Success: raw != nil})

			filtered := make([]indexerclient.Candidate, 0, len(raw))
			for _, c := range raw {
				norm := strings.ToLower(strings.TrimSpace(c.Title))
				if blocked[norm] {
					continue
				}
				filtered = append(filtered, c)
			}
			if len(filtered) == 0 {
				return nil
			}

			scoringCandidates := make([]scoring.Candidate, len(filtered))
			for j, c := range filtered {
				scoringCandidates[j] = scoring.Candidate{Title: c.Title}
			}
			best, ok := scoring.BestResultMatchingProfile(scoringCandidates, item.Profile, instance)
			if !ok || best.Score < item.Profile.MinCustomFormatScore {
				return nil
			}
			if item.ForceUpgrade && best.Score <= item.CurrentFileScore {
				return nil
			}

			orig := filtered[0]
			for _, c := range filtered {
				if c.Title == best.Candidate.Title {
					orig = c
					break
				}
			}
			picks[i] = indexerPick{entry: ix, cand: orig, score: best.Score, breakdown: best.Breakdown, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errs.Failed[GrabEvent](err)
	}

	winner, found := selectWinner(picks)
	if !found {
		return errs.Rejected[GrabEvent]("no candidate met the profile's minimum score")
	}

	client := o.firstEnabledClient()
	if client == nil {
		return errs.Rejected[GrabEvent]("no enabled download client")
	}

	category := firstOrDefault(item.Categories, "default")
	sub := CandidateSubmission{NZBURL: winner.cand.NZBURL, Title: winner.cand.Title, Category: category}
	outcome := client.Submit(ctx, sub)
	if !outcome.IsOK() {
		return errs.Failed[GrabEvent](fmt.Errorf("submit to %s: %s", client.Name(), outcome.Message()))
	}
	queueID := outcome.Value

	event := GrabEvent{
		Indexer:        winner.entry.Name,
		Title:          winner.cand.Title,
		Score:          winner.score,
		ScoreBreakdown: winner.breakdown,
		Client:         client.Name(),
		QueueID:        queueID,
	}
	o.recordGrab(event)

	if err := o.appendRequestedQueueEntry(ctx, queueID, winner); err != nil {
		o.logf("orchestrator: failed to record requested queue entry for %q: %v", winner.cand.Title, err)
	}
	if err := o.appendCollectionEntry(ctx, item); err != nil {
		o.logf("orchestrator: failed to record collection entry for %q: %v", item.Title, err)
	}

	return errs.Ok(event)
}

// selectWinner implements §4.10 step 5: sort by (indexer_priority ASC,
// score DESC) and take the first. S5 in spec.md §8 is the literal
// worked example this mirrors.
func selectWinner(picks []indexerPick) (indexerPick, bool) {
	var survivors []indexerPick
	for _, p := range picks {
		if p.ok {
			survivors = append(survivors, p)
		}
	}
	if len(survivors) == 0 {
		return indexerPick{}, false
	}
	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].entry.Priority != survivors[j].entry.Priority {
			return survivors[i].entry.Priority < survivors[j].entry.Priority
		}
		return survivors[i].score > survivors[j].score
	})
	return survivors[0], true
}

func (o *Orchestrator) firstEnabledClient() DownloadClient {
	for _, c := range o.clients {
		if c.Enabled() {
			return c
		}
	}
	return nil
}

func firstOrDefault(items []string, def string) string {
	if len(items) == 0 || items[0] == "" || items[0] == "*" {
		return def
	}
	return items[0]
}

func (o *Orchestrator) loadInstance(ctx context.Context) (scoring.Instance, error) {
	var formats []scoring.CustomFormat
	err := o.store.Get(ctx, o.instanceID, configstore.KindCustomFormats, &formats)
	if err != nil && !errors.Is(err, configstore.ErrNotFound) {
		return scoring.Instance{}, err
	}
	return scoring.Instance{CustomFormats: formats}, nil
}

func (o *Orchestrator) blocklistSet(ctx context.Context) (map[string]bool, error) {
	var entries []configstore.BlocklistEntry
	err := o.store.Get(ctx, o.instanceID, configstore.KindBlocklist, &entries)
	if err != nil && !errors.Is(err, configstore.ErrNotFound) {
		return nil, err
	}
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		set[strings.ToLower(strings.TrimSpace(e.SourceTitle))] = true
	}
	return set, nil
}

// Blocklist implements the failure side of §4.10 step 8: add the
// release title so no later candidate with a matching normalized title
// is ever selected again (testable property 9).
func (o *Orchestrator) Blocklist(ctx context.Context, sourceTitle, movieTitle string, year int, reason string) error {
	var entries []configstore.BlocklistEntry
	err := o.store.Get(ctx, o.instanceID, configstore.KindBlocklist, &entries)
	if err != nil && !errors.Is(err, configstore.ErrNotFound) {
		return err
	}
	entries = append(entries, configstore.BlocklistEntry{
		SourceTitle:  sourceTitle,
		MovieTitle:   movieTitle,
		Year:         year,
		ReasonFailed: reason,
		DateAdded:    time.Now().UTC().Format(time.RFC3339),
	})
	return o.store.Save(ctx, o.instanceID, configstore.KindBlocklist, entries)
}

func (o *Orchestrator) appendRequestedQueueEntry(ctx context.Context, queueID string, pick indexerPick) error {
	var entries []configstore.RequestedQueueEntry
	err := o.store.Get(ctx, o.instanceID, configstore.KindRequestedQueue, &entries)
	if err != nil && !errors.Is(err, configstore.ErrNotFound) {
		return err
	}
	entries = append(entries, configstore.RequestedQueueEntry{
		QueueID:        queueID,
		Title:          pick.cand.Title,
		Score:          pick.score,
		ScoreBreakdown: pick.breakdown,
	})
	return o.store.Save(ctx, o.instanceID, configstore.KindRequestedQueue, entries)
}

func (o *Orchestrator) appendCollectionEntry(ctx context.Context, item LibraryItem) error {
	var entries []configstore.CollectionItem
	err := o.store.Get(ctx, o.instanceID, configstore.KindCollection, &entries)
	if err != nil && !errors.Is(err, configstore.ErrNotFound) {
		return err
	}
	entries = append(entries, configstore.CollectionItem{
		TMDBID:      item.TMDBID,
		Title:       item.Title,
		Year:        item.Year,
		Status:      "requested",
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return o.store.Save(ctx, o.instanceID, configstore.KindCollection, entries)
}

func (o *Orchestrator) recordSearch(e SearchEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.searchLog = append(o.searchLog, e)
	if len(o.searchLog) > o.searchLimit {
		o.searchLog = o.searchLog[len(o.searchLog)-o.searchLimit:]
	}
}

func (o *Orchestrator) recordGrab(e GrabEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.grabLog = append(o.grabLog, e)
	if len(o.grabLog) > o.searchLimit {
		o.grabLog = o.grabLog[len(o.grabLog)-o.searchLimit:]
	}
}

// SearchEvents and GrabEvents expose the bounded in-memory event logs
// for external stats (§4.10 steps 2 and 5).
func (o *Orchestrator) SearchEvents() []SearchEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]SearchEvent, len(o.searchLog))
	copy(out, o.searchLog)
	return out
}

func (o *Orchestrator) GrabEvents() []GrabEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]GrabEvent, len(o.grabLog))
	copy(out, o.grabLog)
	return out
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.log != nil {
		o.log.Warn(format, args...)
	}
}
