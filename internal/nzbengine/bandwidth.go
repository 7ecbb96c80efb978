package nzbengine

import (
	"sync"
	"time"
)

const (
	bucketSeconds    = 3600
	maxBuckets       = 720 // 30 days of hourly buckets
	minFlushInterval = 60 * time.Second
)

type bandwidthBucket struct {
	hourTS int64
	bytes  int64
}

type serverBandwidth struct {
	total   int64
	buckets []bandwidthBucket // ascending by hourTS
}

// BandwidthHistory tracks, per server name, a ring of hourly byte buckets
// (§4.4 "Bandwidth history") so get_stats can answer 1h/24h/30d/all-time
// windows without rescanning raw samples.
type BandwidthHistory struct {
	mu         sync.Mutex
	servers    map[string]*serverBandwidth
	lastFlush  time.Time
	flushDirty bool
}

func NewBandwidthHistory() *BandwidthHistory {
	return &BandwidthHistory{servers: make(map[string]*serverBandwidth)}
}

// Add records n bytes downloaded from server at time now, bucketed to the
// hour and pruned to the last 720 buckets.
func (b *BandwidthHistory) Add(server string, n int64, now time.Time) {
	if n <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	sb, ok := b.servers[server]
	if !ok {
		sb = &serverBandwidth{}
		b.servers[server] = sb
	}
	sb.total += n

	hourTS := now.Unix() / bucketSeconds * bucketSeconds
	if last := len(sb.buckets); last > 0 && sb.buckets[last-1].hourTS == hourTS {
		sb.buckets[last-1].bytes += n
	} else {
		sb.buckets = append(sb.buckets, bandwidthBucket{hourTS: hourTS, bytes: n})
	}
	if len(sb.buckets) > maxBuckets {
		sb.buckets = sb.buckets[len(sb.buckets)-maxBuckets:]
	}
	b.flushDirty = true
}

// Stats is the §4.4 get_stats(server) result.
type Stats struct {
	Last1h   int64
	Last24h  int64
	Last30d  int64
	AllTime  int64
}

// GetStats sums buckets within each trailing window as of now.
func (b *BandwidthHistory) GetStats(server string, now time.Time) Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	sb, ok := b.servers[server]
	if !ok {
		return Stats{}
	}

	cutoff1h := now.Add(-1 * time.Hour).Unix()
	cutoff24h := now.Add(-24 * time.Hour).Unix()
	cutoff30d := now.Add(-30 * 24 * time.Hour).Unix()

	var s Stats
	s.AllTime = sb.total
	for _, bucket := range sb.buckets {
		if bucket.hourTS >= cutoff30d {
			s.Last30d += bucket.bytes
		}
		if bucket.hourTS >= cutoff24h {
			s.Last24h += bucket.bytes
		}
		if bucket.hourTS >= cutoff1h {
			s.Last1h += bucket.bytes
		}
	}
	return s
}

// ShouldFlush reports whether at least minFlushInterval has elapsed since
// the last successful flush and there is unflushed data.
func (b *BandwidthHistory) ShouldFlush(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushDirty && now.Sub(b.lastFlush) >= minFlushInterval
}

// MarkFlushed clears the dirty flag after a caller has persisted the
// current state via ConfigStore.
func (b *BandwidthHistory) MarkFlushed(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushDirty = false
	b.lastFlush = now
}
