package component

import (
	"context"
	"sync"

	"github.com/kbukum/pipekit/observability"
)

// Background adapts a blocking function into a Component. Start runs fn in
// a goroutine with a context that Stop cancels; Stop waits for fn to
// return. Health reports down once fn has returned an error.
type Background struct {
	name string
	desc Description
	fn   func(ctx context.Context) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewBackground creates a Background component.
func NewBackground(name string, desc Description, fn func(ctx context.Context) error) *Background {
	return &Background{name: name, desc: desc, fn: fn}
}

func (b *Background) Name() string { return b.name }

func (b *Background) Describe() Description { return b.desc }

func (b *Background) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// The run context outlives the start context.
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	b.err = nil

	go func() {
		defer close(b.done)
		err := b.fn(ctx)
		if err != nil && ctx.Err() == nil {
			b.mu.Lock()
			b.err = err
			b.mu.Unlock()
		}
	}()
	return nil
}

func (b *Background) Stop(ctx context.Context) error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Background) Health(_ context.Context) observability.Health {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return observability.Health{Name: b.name, Status: observability.HealthStatusDown, Message: b.err.Error()}
	}
	return observability.Health{Name: b.name, Status: observability.HealthStatusUp}
}
