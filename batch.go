package modelrelay

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// CompleteBatch executes specs concurrently and returns one response per
// input, in input order. Each slot is independent: a failed request
// yields a response with Error set without affecting its neighbors.
//
// Concurrency is bounded by WithBatchConcurrency; WithBatchPacing adds an
// optional requests-per-second ceiling across the whole batch.
func (c *Client) CompleteBatch(ctx context.Context, specs []*RequestSpec) []*NormalizedResponse {
	results := make([]*NormalizedResponse, len(specs))
	if len(specs) == 0 {
		return results
	}

	var pacer *rate.Limiter
	if c.config.BatchRPS > 0 {
		burst := c.config.BatchBurst
		if burst < 1 {
			burst = 1
		}
		pacer = rate.NewLimiter(rate.Limit(c.config.BatchRPS), burst)
	}

	workers := c.config.BatchConcurrency
	if workers > len(specs) {
		workers = len(specs)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if pacer != nil {
					if err := pacer.Wait(ctx); err != nil {
						results[i] = &NormalizedResponse{Error: err.Error()}
						continue
					}
				}
				resp, _ := c.Complete(ctx, specs[i])
				results[i] = resp
			}
		}()
	}

	for i := range specs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
