package utils

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestKeySetNoDuplicates(t *testing.T) {
	s := NewKeySet()

	added := s.Add("https://www.amazon.in/dp/B0TEST")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("https://www.amazon.in/dp/B0TEST")
	if added {
		t.Error("second Add of same key should return false")
	}

	if !s.Contains("https://www.amazon.in/dp/B0TEST") {
		t.Error("Contains should report the added key")
	}
	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
}

func TestKeySetConcurrency(t *testing.T) {
	s := NewKeySet()
	var added int64

	pool := NewWorkerPool(10, 0)
	for i := 0; i < 100; i++ {
		key := "shoe x-nike"
		pool.Submit(func() {
			if s.Add(key) {
				atomic.AddInt64(&added, 1)
			}
		})
	}
	pool.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestWorkerPoolRateLimit(t *testing.T) {
	rateLimitMs := 100
	pool := NewWorkerPool(1, rateLimitMs)

	var timestamps []time.Time
	mu := make(chan struct{}, 1)
	mu <- struct{}{}

	for i := 0; i < 3; i++ {
		pool.Submit(func() {
			<-mu
			timestamps = append(timestamps, time.Now())
			mu <- struct{}{}
		})
	}
	pool.Wait()

	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		min := time.Duration(rateLimitMs) * time.Millisecond
		if gap < min {
			t.Errorf("gap between job %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}

func TestWorkerPoolNoRateLimitRunsImmediately(t *testing.T) {
	pool := NewWorkerPool(4, 0)

	start := time.Now()
	var done int64
	for i := 0; i < 8; i++ {
		pool.Submit(func() {
			atomic.AddInt64(&done, 1)
		})
	}
	pool.Wait()

	if done != 8 {
		t.Errorf("expected 8 completed jobs, got %d", done)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("unlimited pool took %v", elapsed)
	}
}
