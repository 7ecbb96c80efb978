package nzbengine

import (
	"sync"
	"time"
)

// speedLimiter is a token bucket sized to one second (§4.4 "Speed limit"):
// the worker calls Consume after each segment write; once the bytes
// consumed within the current one-second window would exceed the budget,
// Consume sleeps out the remainder of that window before returning.
type speedLimiter struct {
	mu          sync.Mutex
	bps         int64 // 0 == unlimited
	windowStart time.Time
	windowUsed  int64
}

func newSpeedLimiter() *speedLimiter {
	return &speedLimiter{}
}

func (s *speedLimiter) SetLimit(bps int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bps = bps
}

func (s *speedLimiter) Limit() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bps
}

// Consume accounts n bytes against the current window and sleeps if the
// budget for this second has been exceeded.
func (s *speedLimiter) Consume(n int64) {
	s.mu.Lock()
	bps := s.bps
	if bps <= 0 {
		s.mu.Unlock()
		return
	}

	now := time.Now()
	if now.Sub(s.windowStart) >= time.Second {
		s.windowStart = now
		s.windowUsed = 0
	}
	s.windowUsed += n

	var sleep time.Duration
	if s.windowUsed > bps {
		sleep = time.Second - now.Sub(s.windowStart)
	}
	s.mu.Unlock()

	if sleep > 0 {
		time.Sleep(sleep)
	}
}
