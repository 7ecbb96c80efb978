package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/datallboy/gonzb/internal/configstore"
	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/indexerclient"
	"github.com/datallboy/gonzb/internal/scoring"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Get(ctx context.Context, instanceID, kind string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[instanceID+"/"+kind]
	if !ok {
		return configstore.ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func (s *memStore) Save(ctx context.Context, instanceID, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[instanceID+"/"+kind] = data
	return nil
}

type fakeClient struct {
	name    string
	enabled bool
	queue   []ClientQueueEntry
	history []ClientHistoryEntry
	submits []CandidateSubmission
}

func (f *fakeClient) Name() string    { return f.name }
func (f *fakeClient) Enabled() bool   { return f.enabled }
func (f *fakeClient) Submit(ctx context.Context, sub CandidateSubmission) errs.Outcome[string] {
	f.submits = append(f.submits, sub)
	return errs.Ok(fmt.Sprintf("q-%d", len(f.submits)))
}
func (f *fakeClient) Queue(ctx context.Context) ([]ClientQueueEntry, error)     { return f.queue, nil }
func (f *fakeClient) History(ctx context.Context) ([]ClientHistoryEntry, error) { return f.history, nil }

func newznabRSS(titles ...string) string {
	items := ""
	for _, t := range titles {
		items += fmt.Sprintf(`<item><title>%s</title><link>http://example.com/%s.nzb</link></item>`, t, t)
	}
	return `<?xml version="1.0"?><rss><channel>` + items + `</channel></rss>`
}

func newTestIndexer(t *testing.T, priority int, titles ...string) IndexerEntry {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(newznabRSS(titles...)))
	}))
	t.Cleanup(srv.Close)
	cfg := indexerclient.Config{Name: fmt.Sprintf("idx%d", priority), BaseURL: srv.URL, APIPath: "", APIKey: "k", Enabled: true}
	return IndexerEntry{Client: indexerclient.New(cfg, nil), Name: cfg.Name, Priority: priority, Enabled: true}
}

func basicProfile(min int) scoring.Profile {
	return scoring.Profile{
		MinCustomFormatScore: min,
		Tiers:                []scoring.QualityTier{{Name: "unknown", Enabled: true}},
	}
}

func TestProcessItem_PicksLowerPriorityIndexerOverHigherScore(t *testing.T) {
	// S5: A(priority=10, score 60, min 50) vs B(priority=20, score 100) ->
	// A wins: lower priority number beats higher score once both clear
	// the profile's minimum.
	store := newMemStore()
	idxA := newTestIndexer(t, 10, "Foo.2160p.mkv")
	idxB := newTestIndexer(t, 20, "Foo.2160p.BONUS.mkv")
	clientA := &fakeClient{name: "clientA", enabled: true}

	instanceFormats := []scoring.CustomFormat{
		{Name: "UHD", Score: 60, Specifications: []scoring.Specification{{Implementation: "ResolutionSpec", Value: "2160", Required: true}}},
		{Name: "Bonus", Score: 40, Specifications: []scoring.Specification{{Implementation: "ReleaseTitleSpec", Value: "BONUS", Required: true}}},
	}
	store.Save(context.Background(), "inst1", configstore.KindCustomFormats, instanceFormats)

	orch := New("inst1", store, []IndexerEntry{idxA, idxB}, []DownloadClient{clientA}, nil)
	item := LibraryItem{Title: "Foo", Year: 2020, Profile: basicProfile(50)}

	out := orch.ProcessItem(context.Background(), item)
	if !out.IsOK() {
		t.Fatalf("expected ok, got %+v", out.Message())
	}
	if out.Value.Indexer != "idx10" {
		t.Fatalf("expected idx10 (lower priority) to win, got %s", out.Value.Indexer)
	}
	if out.Value.Score != 60 {
		t.Fatalf("expected idx10's candidate to score 60, got %d", out.Value.Score)
	}
}

func TestProcessItem_RejectsWhenNoCandidateMeetsMinimumScore(t *testing.T) {
	store := newMemStore()
	idx := newTestIndexer(t, 1, "Foo.CAM.mkv")
	client := &fakeClient{name: "c", enabled: true}
	orch := New("inst1", store, []IndexerEntry{idx}, []DownloadClient{client}, nil)

	out := orch.ProcessItem(context.Background(), LibraryItem{Title: "Foo", Profile: basicProfile(1000)})
	if out.IsOK() {
		t.Fatal("expected rejection")
	}
	if out.Kind != errs.KindRejected {
		t.Fatalf("expected KindRejected, got %v", out.Kind)
	}
}

func TestProcessItem_FiltersBlocklistedTitles(t *testing.T) {
	store := newMemStore()
	store.Save(context.Background(), "inst1", configstore.KindBlocklist, []configstore.BlocklistEntry{
		{SourceTitle: "foo.bar"},
	})
	idx := newTestIndexer(t, 1, "foo.bar")
	client := &fakeClient{name: "c", enabled: true}
	orch := New("inst1", store, []IndexerEntry{idx}, []DownloadClient{client}, nil)

	out := orch.ProcessItem(context.Background(), LibraryItem{Title: "Foo", Profile: basicProfile(0)})
	if out.IsOK() {
		t.Fatalf("expected the only candidate to be blocklisted, got %+v", out.Value)
	}
}

func TestMeetsMinimumAvailability(t *testing.T) {
	if !MeetsMinimumAvailability(AvailabilityAnnounced, AvailabilityInput{}) {
		t.Fatal("announced should always pass")
	}
	if MeetsMinimumAvailability(AvailabilityReleased, AvailabilityInput{Year: 2999}) {
		t.Fatal("far-future year with no release dates should not pass released gate")
	}
}
