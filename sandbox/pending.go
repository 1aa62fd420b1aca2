package sandbox

import (
	"context"
	"runtime/debug"
)

// Pending is a computation that completes later. A ToolFunc may return a
// Pending as its value; the sandbox awaits it inside the same deadline.
type Pending interface {
	Await(ctx context.Context) (any, error)
}

type pending struct {
	done  chan struct{}
	value any
	err   error
}

// Go starts fn in a goroutine and returns its Pending result. A panic in
// fn completes the Pending with a *PanicError.
func Go(fn func() (any, error)) Pending {
	p := &pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				p.err = &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		p.value, p.err = fn()
	}()
	return p
}

func (p *pending) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
