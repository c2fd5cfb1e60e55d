// Package executor runs job bodies off the scheduler goroutine. A job starts
// only after its wait token is satisfied and a worker slot is free.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/l1jgo/gamesys/internal/core/job"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var ErrClosed = errors.New("executor: pool is closed")

// Pool is a bounded goroutine pool. Dispatch is called from the scheduler
// goroutine; job bodies run concurrently up to the worker limit.
type Pool struct {
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted

	wg       sync.WaitGroup
	inFlight atomic.Int32
	closed   atomic.Bool

	mu   sync.Mutex
	errs error
}

// New creates a pool running at most workers jobs at once. workers < 1 is
// treated as 1.
func New(ctx context.Context, workers int, log *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(int64(workers)),
	}
}

// Dispatch schedules fn to run after wait. The returned token is satisfied
// when fn has returned, whether or not it failed, and never before wait.
// Failures are collected for Drain.
func (p *Pool) Dispatch(wait job.Token, name string, fn func(ctx context.Context) error) job.Token {
	tok, done := job.New()
	if p.closed.Load() {
		done()
		p.fail(name, ErrClosed)
		return job.Combine(wait, tok)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer done()

		if err := wait.Wait(p.ctx); err != nil {
			p.abandon(name, err)
			return
		}
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			p.abandon(name, err)
			return
		}
		defer p.sem.Release(1)

		p.inFlight.Add(1)
		defer p.inFlight.Add(-1)
		if err := run(p.ctx, fn); err != nil {
			p.fail(name, err)
		}
	}()
	return job.Combine(wait, tok)
}

func run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (p *Pool) fail(name string, err error) {
	p.log.Warn("job failed", zap.String("job", name), zap.Error(err))
	p.mu.Lock()
	p.errs = multierr.Append(p.errs, fmt.Errorf("job %s: %w", name, err))
	p.mu.Unlock()
}

// abandon records a job that never started, unless the pool is shutting down.
func (p *Pool) abandon(name string, err error) {
	if p.closed.Load() {
		return
	}
	p.fail(name, err)
}

// InFlight returns the number of jobs currently executing.
func (p *Pool) InFlight() int { return int(p.inFlight.Load()) }

// Drain returns and clears the failures collected so far.
func (p *Pool) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.errs
	p.errs = nil
	return err
}

// Wait blocks until every dispatched job has finished and returns their
// collected failures.
func (p *Pool) Wait() error {
	p.wg.Wait()
	return p.Drain()
}

// Close rejects further dispatches and cancels the pool context: jobs still
// parked on their wait token are abandoned and running jobs see cancellation.
// It returns once every goroutine has exited.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.cancel()
	p.wg.Wait()
	return p.Drain()
}
