package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Bulkhead rejections.
var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// BulkheadConfig configures a Bulkhead.
type BulkheadConfig struct {
	// Name identifies the guarded pool in errors and logs.
	Name string
	// MaxConcurrent is the number of slots. Values <= 0 use 64.
	MaxConcurrent int
	// MaxWait is how long Acquire waits for a free slot. 0 fails at once.
	MaxWait time.Duration
}

// Bulkhead caps how many callers hold a slot at the same time. Unlike a
// worker pool it does not own goroutines: a caller acquires a slot, starts
// its own work, and releases the slot when that work has really finished.
type Bulkhead struct {
	cfg BulkheadConfig
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with every slot free.
func NewBulkhead(cfg BulkheadConfig) *Bulkhead {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 64
	}
	return &Bulkhead{cfg: cfg, sem: make(chan struct{}, cfg.MaxConcurrent)}
}

// Acquire takes a slot and returns the function that gives it back. The
// release function is safe to call more than once. When no slot frees up
// within MaxWait it returns ErrBulkheadFull or ErrBulkheadTimeout, and
// ctx.Err() when ctx ends first.
func (b *Bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { <-b.sem }) }, nil
}

// Execute runs fn while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	release, err := b.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	default:
	}
	if b.cfg.MaxWait <= 0 {
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.cfg.MaxWait)
	defer timer.Stop()
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrBulkheadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name returns the configured name.
func (b *Bulkhead) Name() string { return b.cfg.Name }

// InUse returns the number of held slots.
func (b *Bulkhead) InUse() int { return len(b.sem) }

// MaxConcurrent returns the slot count.
func (b *Bulkhead) MaxConcurrent() int { return b.cfg.MaxConcurrent }
