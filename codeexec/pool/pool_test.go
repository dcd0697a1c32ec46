package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/agenthive/codeexec"
)

type countingExecutor struct {
	running int64
	peak    int64
	delay   time.Duration
}

func (c *countingExecutor) Execute(_ context.Context, input codeexec.ExecutionInput) (codeexec.ExecutionResult, error) {
	cur := atomic.AddInt64(&c.running, 1)
	for {
		p := atomic.LoadInt64(&c.peak)
		if cur <= p || atomic.CompareAndSwapInt64(&c.peak, p, cur) {
			break
		}
	}
	time.Sleep(c.delay)
	atomic.AddInt64(&c.running, -1)
	return codeexec.ExecutionResult{Output: input.ExecutionID}, nil
}

func TestExecutor_BoundsConcurrency(t *testing.T) {
	inner := &countingExecutor{delay: 50 * time.Millisecond}
	e, err := New(inner, func(o *Options) { o.Size = 2 })
	require.NoError(t, err)
	defer e.Release()

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func(id string) {
			defer func() { done <- struct{}{} }()
			res, err := e.Execute(context.Background(), codeexec.ExecutionInput{ExecutionID: id})
			assert.NoError(t, err)
			assert.Equal(t, id, res.Output)
		}(string(rune('a' + i)))
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, atomic.LoadInt64(&inner.peak), int64(2))
}

func TestExecutor_ContextCancelled(t *testing.T) {
	inner := &countingExecutor{delay: 200 * time.Millisecond}
	e, err := New(inner, func(o *Options) { o.Size = 1 })
	require.NoError(t, err)
	defer e.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.Execute(ctx, codeexec.ExecutionInput{ExecutionID: "x"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
