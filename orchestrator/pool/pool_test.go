package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"mediaOrchestrator/orchestrator/kafka"
)

func TestPoolHandlesEverySubmission(t *testing.T) {
	p := New(4)
	var handled int64

	for i := 0; i < 50; i++ {
		p.Submit(context.Background(), &kafka.DetectionResponse{JobID: int64(i)},
			func(ctx context.Context, resp *kafka.DetectionResponse) error {
				atomic.AddInt64(&handled, 1)
				return nil
			})
	}
	p.Wait()

	if handled != 50 {
		t.Fatalf("handled %d responses, want 50", handled)
	}
}

func TestPoolCapsConcurrency(t *testing.T) {
	const limit = 3
	p := New(limit)

	var (
		mu      sync.Mutex
		active  int
		peak    int
		release = make(chan struct{})
	)
	for i := 0; i < 10; i++ {
		p.Submit(context.Background(), &kafka.DetectionResponse{},
			func(ctx context.Context, resp *kafka.DetectionResponse) error {
				mu.Lock()
				active++
				if active > peak {
					peak = active
				}
				mu.Unlock()

				<-release

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
	}
	close(release)
	p.Wait()

	if peak > limit {
		t.Fatalf("peak concurrency %d exceeds limit %d", peak, limit)
	}
}

func TestPoolDropsWorkWhenContextEnds(t *testing.T) {
	p := New(1)
	ctx, cancel := context.WithCancel(context.Background())

	block := make(chan struct{})
	p.Submit(ctx, &kafka.DetectionResponse{},
		func(ctx context.Context, resp *kafka.DetectionResponse) error {
			<-block
			return nil
		})

	var ran int64
	cancel()
	p.Submit(ctx, &kafka.DetectionResponse{},
		func(ctx context.Context, resp *kafka.DetectionResponse) error {
			atomic.AddInt64(&ran, 1)
			return nil
		})

	close(block)
	p.Wait()

	if atomic.LoadInt64(&ran) != 0 {
		t.Fatal("work submitted after cancellation must be dropped")
	}
}
