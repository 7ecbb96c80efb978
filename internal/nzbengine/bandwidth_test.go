package nzbengine

import (
	"testing"
	"time"
)

func TestBandwidthHistory_WindowedStats(t *testing.T) {
	bh := NewBandwidthHistory()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	bh.Add("P1", 100, now.Add(-48*time.Hour)) // outside 30d window? no, within 30d
	bh.Add("P1", 200, now.Add(-25*time.Hour)) // outside 24h, within 30d
	bh.Add("P1", 300, now.Add(-2*time.Hour))  // outside 1h, within 24h
	bh.Add("P1", 400, now.Add(-10*time.Minute))

	stats := bh.GetStats("P1", now)
	if stats.AllTime != 1000 {
		t.Fatalf("AllTime = %d, want 1000", stats.AllTime)
	}
	if stats.Last1h != 400 {
		t.Fatalf("Last1h = %d, want 400", stats.Last1h)
	}
	if stats.Last24h != 700 {
		t.Fatalf("Last24h = %d, want 700", stats.Last24h)
	}
	if stats.Last30d != 1000 {
		t.Fatalf("Last30d = %d, want 1000", stats.Last30d)
	}
}

func TestBandwidthHistory_UnknownServer(t *testing.T) {
	bh := NewBandwidthHistory()
	stats := bh.GetStats("nope", time.Now())
	if stats != (Stats{}) {
		t.Fatalf("expected zero-value stats, got %+v", stats)
	}
}

func TestBandwidthHistory_PrunesOldBuckets(t *testing.T) {
	bh := NewBandwidthHistory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < maxBuckets+10; i++ {
		bh.Add("P1", 1, base.Add(time.Duration(i)*time.Hour))
	}
	bh.mu.Lock()
	n := len(bh.servers["P1"].buckets)
	bh.mu.Unlock()
	if n > maxBuckets {
		t.Fatalf("bucket count = %d, want <= %d", n, maxBuckets)
	}
}

func TestBandwidthHistory_FlushGating(t *testing.T) {
	bh := NewBandwidthHistory()
	now := time.Now()
	bh.Add("P1", 10, now)
	if !bh.ShouldFlush(now) {
		t.Fatal("expected ShouldFlush true immediately after first Add")
	}
	bh.MarkFlushed(now)
	if bh.ShouldFlush(now.Add(30 * time.Second)) {
		t.Fatal("expected ShouldFlush false within the 60s gate")
	}
	bh.Add("P1", 5, now.Add(30*time.Second))
	if !bh.ShouldFlush(now.Add(61 * time.Second)) {
		t.Fatal("expected ShouldFlush true after 60s elapsed with new data")
	}
}
