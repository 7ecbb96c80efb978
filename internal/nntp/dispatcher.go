package nntp

import (
	"errors"
	"sort"
	"time"

	"github.com/datallboy/gonzb/internal/errs"
)

// acquireTimeout is the short per-pool acquire timeout (§4.3) so parallel
// worker goroutines fall through to another pool quickly when one is
// saturated, rather than queuing behind it.
const acquireTimeout = 500 * time.Millisecond

// Dispatcher tries pools in ascending priority order for a given
// (message-id, groups) pair, returning the first article body found.
type Dispatcher struct {
	pools []*Pool
}

// NewDispatcher sorts pools ascending by priority once at construction;
// Dispatch then always walks them in that fixed order.
func NewDispatcher(pools []*Pool) *Dispatcher {
	sorted := make([]*Pool, len(pools))
	copy(sorted, pools)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })
	return &Dispatcher{pools: sorted}
}

// Dispatch fetches one article, trying each pool in priority order. It
// returns the decoded article body and the name of the pool that served
// it, or (nil, "", errs.ErrArticleMissing) if every pool reported the
// article missing, or the last transient error if pools were exhausted
// without an explicit "missing" verdict.
func (d *Dispatcher) Dispatch(messageID string, groups []string) ([]byte, string, error) {
	var lastErr error
	anyMissing := false

	for _, pool := range d.pools {
		conn := pool.Get(acquireTimeout)
		if conn == nil {
			continue // saturated or down; try next pool
		}

		for _, g := range groups {
			if conn.SelectGroup(g) {
				break // BODY works without GROUP on many servers regardless
			}
		}

		data, err := conn.Body(messageID)
		if err != nil {
			if errors.Is(err, errs.ErrArticleMissing) {
				anyMissing = true
				pool.Release(conn)
				continue
			}
			// Transport error: connection is already marked broken by
			// Body(); Release will remove it rather than re-list it.
			pool.Release(conn)
			lastErr = err
			continue
		}

		pool.AddBandwidth(int64(len(data)))
		pool.Release(conn)
		return data, pool.Name(), nil
	}

	if anyMissing {
		return nil, "", errs.ErrArticleMissing
	}
	if lastErr != nil {
		return nil, "", lastErr
	}
	return nil, "", nil
}

// Pools exposes the underlying pool set (read-only use: capacity
// calculations, bandwidth stats).
func (d *Dispatcher) Pools() []*Pool { return d.pools }

// TotalCapacity returns the sum of each pool's MaxConnection — the number
// of article-retrieval workers the NZB engine should fan out to (§4.4/§5).
func (d *Dispatcher) TotalCapacity() int {
	total := 0
	for _, p := range d.pools {
		total += p.MaxConnection()
	}
	return total
}
