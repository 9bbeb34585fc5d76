package resolve

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Maggerino21/ai-component-extractor/internal"
)

// Batcher fans resolution requests out to the underlying resolver with a
// fixed worker limit. Identical in-flight requests collapse into one call
// and answers are memoized across batches, so repeated rows cost one
// resolution per run.
type Batcher struct {
	resolver Resolver
	cache    *Cache
	flight   singleflight.Group
	workers  int
	timeout  time.Duration
	log      zerolog.Logger

	mu    sync.Mutex
	calls int
}

// Outcome is the per-request result, addressed by input index. Failed
// requests carry Source fallback and zero Fields.
type Outcome struct {
	Fields Fields
	Source internal.Resolution
}

func NewBatcher(resolver Resolver, cache *Cache, workers int, timeout time.Duration, log zerolog.Logger) *Batcher {
	if workers <= 0 {
		workers = 10
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Batcher{
		resolver: resolver,
		cache:    cache,
		workers:  workers,
		timeout:  timeout,
		log:      log,
	}
}

// Calls returns how many times the underlying resolver has actually been
// invoked.
func (b *Batcher) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Reset clears the memoized answers and the call counter for a fresh run.
func (b *Batcher) Reset() {
	b.cache.Reset()
	b.mu.Lock()
	b.calls = 0
	b.mu.Unlock()
}

// ResolveAll resolves every request and returns outcomes by original input
// index, never by completion order. One failed or timed-out call degrades
// its own row only.
func (b *Batcher) ResolveAll(ctx context.Context, reqs []Request) []Outcome {
	out := make([]Outcome, len(reqs))
	if len(reqs) == 0 {
		return out
	}

	work := make(chan int, len(reqs))
	for i := range reqs {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < b.workers && w < len(reqs); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				out[i] = b.resolveOne(ctx, reqs[i])
			}
		}()
	}
	wg.Wait()
	return out
}

func (b *Batcher) resolveOne(ctx context.Context, req Request) Outcome {
	key := req.Key()
	if f, ok := b.cache.Get(key); ok {
		return Outcome{Fields: f, Source: internal.ResolvedFromCache}
	}

	v, err, _ := b.flight.Do(key, func() (any, error) {
		b.mu.Lock()
		b.calls++
		b.mu.Unlock()

		cctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()

		f, err := b.resolver.Resolve(cctx, req)
		if err != nil {
			return nil, err
		}
		b.cache.Add(key, f)
		return f, nil
	})
	if err != nil {
		b.log.Warn().Err(err).Str("key", key[:12]).Msg("resolution failed, keeping deterministic partials")
		return Outcome{Source: internal.ResolvedFallback}
	}
	return Outcome{Fields: v.(Fields), Source: internal.ResolvedExternal}
}

// Stats summarizes a batch of outcomes for the import report.
func Stats(outcomes []Outcome, externalCalls int) internal.ResolverStats {
	stats := internal.ResolverStats{Dispatched: len(outcomes), External: externalCalls}
	for _, o := range outcomes {
		switch o.Source {
		case internal.ResolvedFromCache:
			stats.CacheHits++
		case internal.ResolvedFallback:
			stats.Fallbacks++
		}
	}
	return stats
}
