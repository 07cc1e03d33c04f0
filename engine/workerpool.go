package engine

import (
	"runtime"
	"sync"
)

// forEachPoint runs fn once per index in [0, n) across a bounded worker
// pool sized to maxWorkers (or runtime.GOMAXPROCS(0) when maxWorkers <= 0),
// and waits for all of them to finish before returning — spec.md §5's
// "bounded worker pool sized to hardware parallelism, not spawn per point".
//
// No repo in the retrieved corpus imports a worker-pool library (not even
// golang.org/x/sync/errgroup), and the teacher's own round loop has no
// fan-out to ground a library choice on (see DESIGN.md); this follows the
// corpus's general goroutine + sync.WaitGroup idiom instead.
func forEachPoint(n, maxWorkers int, fn func(i int)) {
	if n == 0 {
		return
	}
	workers := maxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}()
	}
	wg.Wait()
}
