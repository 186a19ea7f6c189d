package coordination

import (
	"context"
	"sync"
)

// Connector opens the coordination service. It is called by Provider.Get
// until it succeeds once.
type Connector func(ctx context.Context) (*Service, error)

// Provider lazily creates a single Service shared by every caller in the process.
type Provider struct {
	connect Connector

	mu  sync.Mutex
	svc *Service
}

// NewProvider returns a Provider that uses connect for the first successful Get.
func NewProvider(connect Connector) *Provider {
	return &Provider{connect: connect}
}

// Get returns the Service, connecting on first use. Concurrent callers wait
// for the connection in progress. A failed connection is not cached, so a
// later call tries again.
func (p *Provider) Get(ctx context.Context) (*Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.svc != nil {
		return p.svc, nil
	}

	svc, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, &ServiceUnavailableError{}
	}
	p.svc = svc
	return svc, nil
}

// Close closes the Service if one was created.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.svc == nil {
		return nil
	}
	err := p.svc.Close()
	p.svc = nil
	return err
}
