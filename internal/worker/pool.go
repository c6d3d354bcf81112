package worker

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ca-srg/syncvec/internal/filestate"
	"github.com/ca-srg/syncvec/internal/pipeline"
	"github.com/ca-srg/syncvec/internal/types"
)

// PoolStats tracks processing statistics with atomic operations
type PoolStats struct {
	FilesClaimed   int64
	FilesSucceeded int64
	FilesFailed    int64
	FilesDeleted   int64
}

// Pool is a fixed-size set of worker loops. Each loop repeats: claim the
// next eligible file, run it through the orchestrator, repeat; when the
// queue is empty it sleeps for the poll interval. The pool size is the
// outer concurrency bound (files in flight at once); the per-stage
// permits inside the orchestrator are independent, finer-grained bounds.
type Pool struct {
	store        *filestate.Store
	orchestrator *pipeline.Orchestrator
	size         int
	pollInterval time.Duration

	stats PoolStats
}

// NewPool creates a worker pool.
func NewPool(store *filestate.Store, orchestrator *pipeline.Orchestrator, size int, pollInterval time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Pool{
		store:        store,
		orchestrator: orchestrator,
		size:         size,
		pollInterval: pollInterval,
	}
}

// Run starts the worker loops and blocks until the context is cancelled
// and every in-flight file has resolved.
func (p *Pool) Run(ctx context.Context) {
	log.Printf("worker: starting %d worker(s), poll interval %v", p.size, p.pollInterval)

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()

	log.Printf("worker: pool stopped (%d claimed, %d ok, %d failed, %d deleted)",
		atomic.LoadInt64(&p.stats.FilesClaimed),
		atomic.LoadInt64(&p.stats.FilesSucceeded),
		atomic.LoadInt64(&p.stats.FilesFailed),
		atomic.LoadInt64(&p.stats.FilesDeleted))
}

// Drain processes eligible files until the queue is empty, then returns.
// Used by one-shot runs and tests.
func (p *Pool) Drain(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				if !p.processOne(ctx, id) {
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		if p.processOne(ctx, id) {
			continue
		}
		// Queue empty: back off until the next poll.
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.pollInterval):
		}
	}
}

// processOne claims and processes a single file. Returns false when no
// eligible file was found. A failed file never stops the loop: the error
// is local to that file and the worker immediately becomes available.
func (p *Pool) processOne(ctx context.Context, id int) bool {
	rec, found, err := p.store.ClaimNext(ctx)
	if err != nil {
		log.Printf("worker %d: claim failed: %v", id, err)
		return false
	}
	if !found {
		return false
	}

	atomic.AddInt64(&p.stats.FilesClaimed, 1)

	if err := p.orchestrator.Process(ctx, rec); err != nil {
		atomic.AddInt64(&p.stats.FilesFailed, 1)
		log.Printf("worker %d: %s: %v", id, rec.Path, err)
		return true
	}

	if rec.PrevStatus == types.StatusDeleted {
		atomic.AddInt64(&p.stats.FilesDeleted, 1)
	} else {
		atomic.AddInt64(&p.stats.FilesSucceeded, 1)
	}
	return true
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		FilesClaimed:   atomic.LoadInt64(&p.stats.FilesClaimed),
		FilesSucceeded: atomic.LoadInt64(&p.stats.FilesSucceeded),
		FilesFailed:    atomic.LoadInt64(&p.stats.FilesFailed),
		FilesDeleted:   atomic.LoadInt64(&p.stats.FilesDeleted),
	}
}
