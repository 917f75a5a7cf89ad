package apply

import (
	"sync"
	"testing"
)

func TestPathLocksSerializeOverlappingSets(t *testing.T) {
	locks := newPathLocks()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Deliberately unsorted and overlapping inputs.
			release := locks.acquire([]string{"c.go", "a.go", "b.go", "a.go"})
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if len(order) != 8 {
		t.Errorf("expected 8 critical-section entries, got %d", len(order))
	}
}

func TestPathLocksReleaseAllowsReacquire(t *testing.T) {
	locks := newPathLocks()
	release := locks.acquire([]string{"x.go"})
	release()

	done := make(chan struct{})
	go func() {
		r := locks.acquire([]string{"x.go"})
		r()
		close(done)
	}()
	<-done
}
