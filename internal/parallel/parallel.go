// Package parallel splits index ranges across goroutines for the CPU
// backend's row-independent loops.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how a range is split.
type Config struct {
	Enabled      bool // Whether to use goroutines at all.
	NumWorkers   int  // Upper bound on concurrent chunks.
	MinChunkSize int  // Ranges shorter than this run on the caller.
}

// DefaultConfig returns a Config sized to GOMAXPROCS.
func DefaultConfig() Config {
	n := runtime.GOMAXPROCS(0)
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Rows calls f(start, end) over disjoint chunks covering [0, n).
// f must only write state owned by its own chunk.
func Rows(n int, cfg Config, f func(start, end int)) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < 2*cfg.MinChunkSize {
		f(0, n)
		return
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(start, end)
		}()
	}
	wg.Wait()
}

// For calls f(i) for every i in [0, n), split as in Rows.
func For(n int, cfg Config, f func(i int)) {
	Rows(n, cfg, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	})
}
