package tryon

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the number of jobs RunBatch keeps in flight.
const DefaultBatchConcurrency = 4

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Index  int
	Result *Result
	Err    error
}

// RunBatch runs reqs through Run with at most concurrency jobs in flight.
// One job failing does not stop the others; results are returned in input order.
func (c *Client) RunBatch(ctx context.Context, reqs []*JobRequest, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := c.Run(ctx, req)
			results[i] = BatchResult{Index: i, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
