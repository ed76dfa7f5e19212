package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/metrics"
)

// TaskHandler processes one decoded task. A nil return acks the message; an
// error dead-letters it.
type TaskHandler interface {
	Handle(ctx context.Context, task *domain.Task) error
}

// WorkerPool manages a fixed-size pool of goroutines that process tasks.
// The direct-search lane is a pool of size 1: the upstream public service
// tolerates only one query in flight per source.
type WorkerPool struct {
	name    string
	size    int
	tasks   <-chan *domain.TaskMessage
	handler TaskHandler
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool draining tasks.
func NewWorkerPool(name string, size int, tasks <-chan *domain.TaskMessage, handler TaskHandler, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		name:    name,
		size:    size,
		tasks:   tasks,
		handler: handler,
		logger:  logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool",
		zap.String("pool", p.name),
		zap.Int("pool_size", p.size),
	)

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current tasks and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped", zap.String("pool", p.name))
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.String("pool", p.name), zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.String("pool", p.name), zap.Int("worker_id", id))
			return
		case msg, ok := <-p.tasks:
			if !ok {
				p.logger.Debug("Task channel closed", zap.String("pool", p.name), zap.Int("worker_id", id))
				return
			}

			task := msg.Task

			p.logger.Info("Worker processing task",
				zap.String("pool", p.name),
				zap.Int("worker_id", id),
				zap.String("type", string(task.Type)),
				zap.String("run_id", task.RunID.String()),
			)

			// Track active workers gauge.
			metrics.WorkersActive.Inc()
			startTime := time.Now()

			err := p.handle(ctx, task)
			elapsed := time.Since(startTime).Seconds()

			metrics.WorkersActive.Dec()
			metrics.TaskDuration.WithLabelValues(string(task.Type)).Observe(elapsed)

			if err != nil {
				p.logger.Error("Task processing failed",
					zap.String("pool", p.name),
					zap.Int("worker_id", id),
					zap.String("run_id", task.RunID.String()),
					zap.Error(err),
				)

				// Nack without requeue — failed tasks go to the DLQ.
				// Requeuing a deterministic failure would cause an infinite loop.
				if nackErr := msg.Nack(false); nackErr != nil {
					p.logger.Error("Failed to NACK message",
						zap.String("run_id", task.RunID.String()),
						zap.Error(nackErr),
					)
				}

				metrics.TasksTotal.WithLabelValues(string(task.Type), "error").Inc()
				continue
			}

			// Task handled — ACK the message.
			if ackErr := msg.Ack(); ackErr != nil {
				p.logger.Error("Failed to ACK message after processing",
					zap.String("run_id", task.RunID.String()),
					zap.Error(ackErr),
				)
			}

			metrics.TasksTotal.WithLabelValues(string(task.Type), "ok").Inc()
		}
	}
}

// handle runs the handler with panic containment: a panicking handler must
// not kill the worker or lose the message.
func (p *WorkerPool) handle(ctx context.Context, task *domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pool: panic in task handler: %v", r)
		}
	}()
	return p.handler.Handle(ctx, task)
}
