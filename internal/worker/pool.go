package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"video-analysis-service/internal/service"
)

// Pool runs background analysis execution: a claim loop feeds analysis ids
// from the queue to N worker goroutines. Request handlers never wait on it.
type Pool struct {
	queue      service.Queue
	processor  *Processor
	workers    int
	claimDelay time.Duration
	logger     *slog.Logger
}

func NewPool(queue service.Queue, processor *Processor, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
		logger:     logger.With("component", "worker_pool"),
	}
}

// Run blocks until ctx is canceled.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("worker pool started", "workers", p.workers)

	jobCh := make(chan string)

	for i := 0; i < p.workers; i++ {
		go func(n int) {
			for analysisID := range jobCh {
				if err := p.processor.Process(ctx, analysisID); err != nil {
					p.logger.Error("process analysis failed",
						"worker", n, "analysis_id", analysisID, "error", err)
				}

				// Ack unconditionally: the terminal state is already in the
				// store (or Process died before the claim, in which case the
				// reaper redelivers).
				if err := p.queue.Ack(ctx, analysisID); err != nil {
					p.logger.Error("ack failed",
						"worker", n, "analysis_id", analysisID, "error", err)
				}
			}
		}(i + 1)
	}

	for {
		select {
		case <-ctx.Done():
			close(jobCh)
			p.logger.Info("worker pool stopped")
			return
		default:
			analysisID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
			if err != nil {
				if !errors.Is(err, service.ErrQueueEmpty) && ctx.Err() == nil {
					p.logger.Error("claim failed", "error", err)
				}
				continue
			}
			select {
			case jobCh <- analysisID:
			case <-ctx.Done():
				close(jobCh)
				return
			}
		}
	}
}
