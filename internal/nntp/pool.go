package nntp

import (
	"sync"
	"sync/atomic"
	"time"
)

// Pool manages up to ServerConfig.MaxConnection authenticated connections
// to one server: an available free-list plus a set of all live
// connections, with an atomic byte counter (§3 "Server Pool").
type Pool struct {
	conf ServerConfig

	mu          sync.Mutex
	connections map[*Connection]struct{}
	available   []*Connection

	bytesDownloaded atomic.Int64
}

// NewPool constructs an (initially empty) pool for conf.
func NewPool(conf ServerConfig) *Pool {
	return &Pool{
		conf:        conf,
		connections: make(map[*Connection]struct{}),
	}
}

func (p *Pool) Name() string     { return p.conf.Name }
func (p *Pool) Priority() int    { return p.conf.Priority }
func (p *Pool) MaxConnection() int { return p.conf.MaxConnection }

// Get returns an available idle connection, creates a new one if under
// cap, or polls (every ≤100ms) until one frees up or timeout elapses. A
// nil return (no error) means timeout — the caller falls through to the
// next pool.
func (p *Pool) Get(timeout time.Duration) *Connection {
	deadline := time.Now().Add(timeout)

	for {
		p.mu.Lock()
		if n := len(p.available); n > 0 {
			c := p.available[n-1]
			p.available = p.available[:n-1]
			p.mu.Unlock()
			return c
		}
		if len(p.connections) < p.conf.MaxConnection {
			c := newConnection(p.conf)
			p.connections[c] = struct{}{}
			p.mu.Unlock()

			if err := c.connect(); err != nil {
				p.mu.Lock()
				delete(p.connections, c)
				p.mu.Unlock()
				// Fall through to retry/poll rather than propagate —
				// the dispatcher treats a nil return as "try next pool".
				if time.Now().After(deadline) {
					return nil
				}
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return c
		}
		p.mu.Unlock()

		if time.Now().After(deadline) {
			return nil
		}
		time.Sleep(poll(deadline))
	}
}

func poll(deadline time.Time) time.Duration {
	remaining := time.Until(deadline)
	if remaining > 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Release returns a connection to the available list, unless it was
// marked broken, in which case it is closed and removed from the pool
// instead of being re-listed.
func (p *Pool) Release(c *Connection) {
	if c.Broken() {
		p.Remove(c)
		return
	}
	p.mu.Lock()
	p.available = append(p.available, c)
	p.mu.Unlock()
}

// Remove closes and drops c from the pool entirely (used for broken
// connections — never re-listed).
func (p *Pool) Remove(c *Connection) {
	p.mu.Lock()
	delete(p.connections, c)
	p.mu.Unlock()
	c.Close()
}

// AddBandwidth safely increments the cumulative bytes-downloaded counter
// from any number of concurrent callers.
func (p *Pool) AddBandwidth(n int64) {
	p.bytesDownloaded.Add(n)
}

func (p *Pool) BytesDownloaded() int64 {
	return p.bytesDownloaded.Load()
}

// TestConnection verifies the server is reachable and credentials are
// valid by opening and immediately releasing one connection.
func (p *Pool) TestConnection() error {
	c := p.Get(5 * time.Second)
	if c == nil {
		return errTimeoutTestConnection
	}
	p.Release(c)
	return nil
}

// Invariant (§3, §8.3): |available| + |handed out| == |connections|,
// and no connection ever appears in both lists. Handed-out connections
// are exactly connections present in `connections` but absent from
// `available` — this holds because Get always removes-before-returning
// and Release always appends-after-receiving.
func (p *Pool) invariantHolds() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[*Connection]struct{}, len(p.available))
	for _, c := range p.available {
		if _, dup := seen[c]; dup {
			return false
		}
		seen[c] = struct{}{}
		if _, ok := p.connections[c]; !ok {
			return false
		}
	}
	return len(p.available) <= len(p.connections)
}
