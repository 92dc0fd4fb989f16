package workflow

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncerCollapsesBurst(t *testing.T) {
	var mu sync.Mutex
	var fired [][]string
	d := NewDebouncer(0, func(keys []string) { // 0 clamps to the 2s floor
		mu.Lock()
		fired = append(fired, keys)
		mu.Unlock()
	})
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Signal("2026-03-14")
		d.Signal("2026-03-15")
	}

	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	early := len(fired)
	mu.Unlock()
	if early != 0 {
		t.Fatalf("fired before the 2s floor elapsed: %d", early)
	}

	time.Sleep(2 * time.Second)
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 {
		t.Fatalf("a burst must collapse into one callback, got %d", len(fired))
	}
	if len(fired[0]) != 2 {
		t.Fatalf("want the 2 distinct keys, got %v", fired[0])
	}
}

func TestDebouncerStopSwallowsPending(t *testing.T) {
	var mu sync.Mutex
	count := 0
	d := NewDebouncer(2*time.Second, func([]string) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	d.Signal("2026-03-14")
	d.Stop()

	time.Sleep(2500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("stopped debouncer must not fire, got %d", count)
	}
}
