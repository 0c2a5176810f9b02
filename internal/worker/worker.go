package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Pool tracks background goroutines so shutdown can wait for them
type Pool struct {
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	active  atomic.Int64
	stopped atomic.Bool
	logger  *slog.Logger
}

// NewPool creates a new worker pool
func NewPool(logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Submit runs task in the background with the pool's context.
// Tasks submitted after Shutdown are dropped.
func (p *Pool) Submit(task func(ctx context.Context)) {
	p.run(p.ctx, nil, task)
}

// SubmitWithTimeout runs task with a context that expires after timeout
func (p *Pool) SubmitWithTimeout(timeout time.Duration, task func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(p.ctx, timeout)
	p.run(ctx, cancel, task)
}

// Every runs task on each tick until the pool shuts down
func (p *Pool) Every(interval time.Duration, task func(ctx context.Context)) {
	p.Submit(func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		task(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task(ctx)
			}
		}
	})
}

func (p *Pool) run(ctx context.Context, cancel context.CancelFunc, task func(ctx context.Context)) {
	if p.stopped.Load() {
		if cancel != nil {
			cancel()
		}
		p.logger.Warn("⚠️ [Worker] Pool is shut down, dropping task")
		return
	}

	p.wg.Add(1)
	p.active.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.active.Add(-1)
		if cancel != nil {
			defer cancel()
		}
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("❌ [Worker] Task panicked", "panic", r)
			}
		}()
		task(ctx)
	}()
}

// Active returns the number of running tasks
func (p *Pool) Active() int64 {
	return p.active.Load()
}

// Context returns the pool's context
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Shutdown cancels running tasks and waits up to timeout for them to return.
// It reports whether every task finished in time.
func (p *Pool) Shutdown(timeout time.Duration) bool {
	p.logger.Info("🛑 [Worker] Initiating graceful shutdown...", "active", p.Active())

	p.stopped.Store(true)
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("✅ [Worker] All background tasks completed")
		return true
	case <-time.After(timeout):
		p.logger.Warn("⚠️ [Worker] Shutdown timeout exceeded, some tasks may not have completed",
			"timeout", timeout,
			"active", p.Active(),
		)
		return false
	}
}
