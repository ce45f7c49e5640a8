package reflectdb

import (
	"context"
	"sync"

	"github.com/jward/reflectdb/internal/ast"
)

// extractParallel runs extractUnit for every parsed item on a worker pool.
// Each worker writes only into its item's private database, so no locking
// is needed until the serial merge.
//
//	Phase A (serial):   read and parse under feMu (parseAll).
//	Phase B (parallel): extract each unit into its own database.
//	Phase C (serial):   merge in input order (mergeAll).
func (e *Engine) extractParallel(ctx context.Context, items []*unitWork, specs *ast.SpecTable) {
	var work []*unitWork
	for _, item := range items {
		if item.unit != nil {
			work = append(work, item)
		}
	}
	if len(work) == 0 {
		return
	}

	numWorkers := min(e.workers, len(work))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan *unitWork, len(work))
	for _, item := range work {
		workCh <- item
	}
	close(workCh)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				if ctx.Err() != nil {
					item.err = ctx.Err()
					continue
				}
				e.extractUnit(item, specs)
			}
		}()
	}
	wg.Wait()
}
