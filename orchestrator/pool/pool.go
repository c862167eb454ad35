package pool

import (
	"context"
	"sync"

	"mediaOrchestrator/orchestrator/kafka"
)

// ResponsePool bounds the number of worker responses processed
// concurrently. Per-job ordering is the lifecycle manager's concern; the
// pool only caps parallelism.
type ResponsePool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func New(maxWorkers int) *ResponsePool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ResponsePool{
		sem: make(chan struct{}, maxWorkers),
	}
}

// Submit schedules one response for handling. When the pool is saturated it
// waits for a slot unless the context ends first.
func (p *ResponsePool) Submit(ctx context.Context, resp *kafka.DetectionResponse,
	handler func(context.Context, *kafka.DetectionResponse) error) {

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if ctx.Err() != nil {
			return
		}
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			handler(ctx, resp)
		case <-ctx.Done():
		}
	}()
}

// Wait blocks until every submitted response has been handled.
func (p *ResponsePool) Wait() {
	p.wg.Wait()
}
