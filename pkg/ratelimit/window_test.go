package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestWindowStart_SameBucketSharesStart(t *testing.T) {
	window := time.Minute
	base := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	start := WindowStart(base.Add(5*time.Second), window)
	if !start.Equal(base) {
		t.Errorf("WindowStart = %v, want %v", start, base)
	}
	if !WindowStart(base.Add(59*time.Second), window).Equal(start) {
		t.Error("requests 5s and 59s into the bucket should share a start")
	}
	if WindowStart(base.Add(60*time.Second), window).Equal(start) {
		t.Error("a request 60s in belongs to the next bucket")
	}
}

func TestWindowKey(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	key := WindowKey("user:u1", start)
	other := WindowKey("user:u1", start.Add(time.Minute))

	if key == other {
		t.Error("different buckets must produce different keys")
	}
	if key != WindowKey("user:u1", start) {
		t.Error("the same bucket must produce the same key")
	}
}

func TestWindowTake(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	w := NewWindow("user:u1", now, 0)

	for i := 1; i <= 3; i++ {
		count, allowed := w.Take(3, now)
		if !allowed {
			t.Fatalf("take %d should be allowed", i)
		}
		if count != int64(i) {
			t.Errorf("count after take %d = %d", i, count)
		}
	}

	count, allowed := w.Take(3, now)
	if allowed {
		t.Error("fourth take must be denied at limit 3")
	}
	if count != 3 {
		t.Errorf("denied take reported count %d, want 3", count)
	}
}

func TestWindowTake_SeededCountsAgainstLimit(t *testing.T) {
	now := time.Now()
	w := NewWindow("user:u1", now, 2)

	if _, allowed := w.Take(3, now); !allowed {
		t.Fatal("one slot should remain after seeding 2 of 3")
	}
	if _, allowed := w.Take(3, now); allowed {
		t.Error("seeded window at limit must deny")
	}
}

func TestWindowTake_Concurrent(t *testing.T) {
	now := time.Now()
	w := NewWindow("user:u1", now, 0)

	const workers = 100
	const limit = 50

	var wg sync.WaitGroup
	allowed := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := w.Take(limit, now)
			allowed <- ok
		}()
	}
	wg.Wait()
	close(allowed)

	granted := 0
	for ok := range allowed {
		if ok {
			granted++
		}
	}
	if granted != limit {
		t.Errorf("granted %d of %d concurrent takes, want exactly %d", granted, workers, limit)
	}
	if w.Count() != limit {
		t.Errorf("final count = %d, want %d", w.Count(), limit)
	}
}
