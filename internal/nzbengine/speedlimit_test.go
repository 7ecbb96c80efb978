package nzbengine

import (
	"testing"
	"time"
)

func TestSpeedLimiter_Unlimited(t *testing.T) {
	s := newSpeedLimiter()
	start := time.Now()
	s.Consume(10 << 20) // 10MB, no limit set
	if time.Since(start) > 50*time.Millisecond {
		t.Fatal("Consume slept despite no limit being set")
	}
}

func TestSpeedLimiter_SleepsWhenOverBudget(t *testing.T) {
	s := newSpeedLimiter()
	s.SetLimit(1000) // 1000 bytes/sec
	s.Consume(500)
	start := time.Now()
	s.Consume(600) // pushes window total to 1100 > 1000
	elapsed := time.Since(start)
	if elapsed <= 0 {
		t.Fatal("expected Consume to sleep when over budget")
	}
	if elapsed > time.Second {
		t.Fatalf("slept too long: %v", elapsed)
	}
}

func TestSpeedLimiter_SetGet(t *testing.T) {
	s := newSpeedLimiter()
	s.SetLimit(4096)
	if got := s.Limit(); got != 4096 {
		t.Fatalf("Limit() = %d, want 4096", got)
	}
}
