package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Factory connects to the vector database and returns a ready store.
type Factory func(ctx context.Context) (Store, error)

// Provider hands out a single store handle per process. The handle is built
// on first use; a failed attempt is not cached, so the next caller retries.
type Provider struct {
	factory Factory

	mu    sync.Mutex
	store Store
}

func NewProvider(f Factory) *Provider {
	return &Provider{factory: f}
}

// Get returns the shared store, initialising it if needed. Initialisation
// failures are reported as ErrUnavailable.
func (p *Provider) Get(ctx context.Context) (Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		return p.store, nil
	}

	store, err := p.factory(ctx)
	if err != nil {
		slog.WarnContext(ctx, "vector store initialisation failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	p.store = store
	slog.InfoContext(ctx, "vector store initialised")
	return store, nil
}

// Initialised reports whether a handle has been created.
func (p *Provider) Initialised() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store != nil
}
