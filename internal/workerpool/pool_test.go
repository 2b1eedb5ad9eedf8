package workerpool

import (
	"sync"
	"testing"
)

func TestPoolRunsAllSubmittedWork(t *testing.T) {
	p := New(4)
	defer p.Close()

	const n = 200
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int]bool)

	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		p.Submit(func() {
			defer wg.Done()
			mu.Lock()
			seen[i] = true
			mu.Unlock()
		})
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("got %d distinct completions, want %d", len(seen), n)
	}
}

func TestPoolZeroWorkersDefaultsToOne(t *testing.T) {
	p := New(0)
	defer p.Close()

	done := make(chan struct{})
	p.Submit(func() { close(done) })
	<-done
}
