// Package mock provides an in-memory Publisher for usecase tests.
package mock

import (
	"context"
	"sync"

	"github.com/blastxplorer/blastxplorer/internal/domain"
)

// Publisher records published tasks. PublishFn can be set to inject errors.
type Publisher struct {
	mu        sync.Mutex
	Published []domain.Task

	PublishFn func(ctx context.Context, task *domain.Task) error
	Closed    bool
}

func (p *Publisher) Publish(ctx context.Context, task *domain.Task) error {
	if p.PublishFn != nil {
		if err := p.PublishFn(ctx, task); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Published = append(p.Published, *task)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}
