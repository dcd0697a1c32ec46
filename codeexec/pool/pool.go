// Package pool wraps any codeexec.Executor with a bounded goroutine pool so a
// team of code-executing agents cannot saturate the host (or a remote session
// pool's rate limits) with unbounded concurrent executions.
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/agenthive/agenthive/codeexec"
)

// Options configure the pooled executor.
type Options struct {
	// Size is the maximum number of concurrently running executions.
	Size int
	// Nonblocking makes Execute fail fast with ants.ErrPoolOverload instead
	// of waiting for a free worker.
	Nonblocking bool
}

// Executor funnels Execute calls through an ants worker pool.
type Executor struct {
	inner codeexec.Executor
	pool  *ants.Pool
}

type execResult struct {
	res codeexec.ExecutionResult
	err error
}

// New creates a pooled executor around inner.
func New(inner codeexec.Executor, optFns ...func(o *Options)) (*Executor, error) {
	opts := Options{Size: 4}
	for _, fn := range optFns {
		fn(&opts)
	}
	p, err := ants.NewPool(opts.Size, ants.WithNonblocking(opts.Nonblocking))
	if err != nil {
		return nil, fmt.Errorf("create executor pool: %w", err)
	}
	return &Executor{inner: inner, pool: p}, nil
}

// Execute schedules the execution on the pool and waits for its completion or
// context cancellation. When the context is cancelled before a worker picks
// the job up, the job still runs to completion in the background but its
// result is discarded.
func (e *Executor) Execute(ctx context.Context, input codeexec.ExecutionInput) (codeexec.ExecutionResult, error) {
	done := make(chan execResult, 1)
	var once sync.Once

	err := e.pool.Submit(func() {
		res, err := e.inner.Execute(ctx, input)
		once.Do(func() { done <- execResult{res: res, err: err} })
	})
	if err != nil {
		return codeexec.ExecutionResult{}, fmt.Errorf("submit execution: %w", err)
	}

	select {
	case <-ctx.Done():
		return codeexec.ExecutionResult{}, ctx.Err()
	case r := <-done:
		return r.res, r.err
	}
}

// Restart forwards to the inner executor when it supports restarting.
func (e *Executor) Restart(ctx context.Context) error {
	if r, ok := e.inner.(codeexec.Restartable); ok {
		return r.Restart(ctx)
	}
	return nil
}

// Running reports the number of in-flight executions.
func (e *Executor) Running() int { return e.pool.Running() }

// Release shuts the pool down. Pending Execute calls fail with
// ants.ErrPoolClosed.
func (e *Executor) Release() { e.pool.Release() }
