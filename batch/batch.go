package batch

import (
	"context"
	"sync"

	"github.com/cratedig/cratedig/analysis"
	"github.com/cratedig/cratedig/logging"
)

// DefaultWorkers is the bounded pool size for parallel track analysis.
// Analysis is CPU-heavy; three concurrent tracks keeps a desktop machine
// responsive while saturating the decode pipeline.
const DefaultWorkers = 3

// AnalyzeFunc analyzes a single track. A fresh, independent analysis runs
// per call; implementations must be safe for concurrent use.
type AnalyzeFunc func(path string) (*analysis.Result, error)

// Callbacks deliver per-track and aggregate progress as the pool drains.
// All callbacks are invoked serially; nil callbacks are skipped.
type Callbacks struct {
	// OnTrack fires for every completed track, cached or fresh
	OnTrack func(path string, result *analysis.Result, completed, total int)

	// OnError fires when a track fails fatally; the batch continues
	OnError func(path string, err error)

	// OnProgress fires after every completion, cached, fresh or failed
	OnProgress func(completed, total int)

	// OnDone fires once, with counts of newly analyzed and cache-served tracks
	OnDone func(analyzed, cached int)
}

// Runner analyzes a batch of tracks with a bounded worker pool, serving
// cached results immediately without occupying a worker.
type Runner struct {
	cache   *Cache
	analyze AnalyzeFunc
	workers int
	logger  logging.Logger
}

// NewRunner creates a batch runner. workers <= 0 selects DefaultWorkers.
func NewRunner(cache *Cache, analyze AnalyzeFunc, workers int) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{
		cache:   cache,
		analyze: analyze,
		workers: workers,
		logger:  logging.WithFields(logging.Fields{"component": "batch"}),
	}
}

// Run processes all paths and blocks until the pool drains or ctx is
// canceled. Cancellation is cooperative and checked between tracks: an
// in-flight analysis completes once started, but no new track begins
// after cancellation.
func (r *Runner) Run(ctx context.Context, paths []string, cb Callbacks) {
	total := len(paths)
	completed := 0
	cached := 0
	analyzed := 0

	// Serializes callback delivery and the counters
	var mu sync.Mutex

	notify := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}

	// First pass: serve cache hits immediately, collect the rest
	var uncached []string
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		if result := r.cache.Load(path); result != nil {
			completed++
			cached++
			c := completed
			if cb.OnTrack != nil {
				cb.OnTrack(path, result, c, total)
			}
			if cb.OnProgress != nil {
				cb.OnProgress(c, total)
			}
		} else {
			uncached = append(uncached, path)
		}
	}

	if len(uncached) == 0 || ctx.Err() != nil {
		if cb.OnDone != nil {
			cb.OnDone(analyzed, cached)
		}
		return
	}

	r.logger.Info("starting batch analysis", logging.Fields{
		"tracks":  len(uncached),
		"cached":  cached,
		"workers": r.workers,
	})

	jobs := make(chan string, len(uncached))
	for _, path := range uncached {
		jobs <- path
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for path := range jobs {
				// Cancellation boundary: between tracks, never mid-analysis
				if ctx.Err() != nil {
					return
				}

				result, err := r.analyze(path)

				if err != nil {
					r.logger.Error(err, "track analysis failed", logging.Fields{"file": path})
					notify(func() {
						completed++
						if cb.OnError != nil {
							cb.OnError(path, err)
						}
						if cb.OnProgress != nil {
							cb.OnProgress(completed, total)
						}
					})
					continue
				}

				if err := r.cache.Save(path, result); err != nil {
					r.logger.Warn("failed to cache result", logging.Fields{
						"file":  path,
						"error": err.Error(),
					})
				}

				notify(func() {
					completed++
					analyzed++
					if cb.OnTrack != nil {
						cb.OnTrack(path, result, completed, total)
					}
					if cb.OnProgress != nil {
						cb.OnProgress(completed, total)
					}
				})
			}
		}()
	}

	wg.Wait()

	if cb.OnDone != nil {
		cb.OnDone(analyzed, cached)
	}
}
