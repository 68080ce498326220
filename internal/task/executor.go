package task

import (
	"context"
	"sync"
	"time"

	"github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

// Executor runs detached background work. Nothing waits on a submitted task:
// failures are logged and dropped, never retried and never surfaced to the
// caller.
type Executor interface {
	Submit(name string, fn func(ctx context.Context) error)
}

type job struct {
	name string
	fn   func(ctx context.Context) error
}

// Pool is a fixed-size worker pool draining a buffered queue. A slow or
// failing task never blocks tasks for other rooms beyond queue ordering.
type Pool struct {
	jobs    chan job
	workers int
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool with the given worker and queue sizes.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:    make(chan job, queueSize),
		workers: workers,
		timeout: 10 * time.Second,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop stops accepting work and waits for in-flight tasks.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Submit enqueues a task. When the queue is full the task is dropped with a
// log entry; a later state change will naturally rewrite the same fields.
func (p *Pool) Submit(name string, fn func(ctx context.Context) error) {
	select {
	case p.jobs <- job{name: name, fn: fn}:
	default:
		log.L().Warn().Str("task", name).Msg("task queue full, task dropped")
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.jobs:
			p.run(j)
		}
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			log.L().Error().Str("task", j.name).Interface("panic", r).Msg("task panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := j.fn(ctx); err != nil {
		log.L().Warn().Err(err).Str("task", j.name).Msg("background task failed")
	}
}

// Synchronous runs every task inline. Used in tests so assertions can
// observe durable effects immediately.
type Synchronous struct{}

// Submit runs the task to completion on the calling goroutine.
func (Synchronous) Submit(name string, fn func(ctx context.Context) error) {
	if err := fn(context.Background()); err != nil {
		log.L().Warn().Err(err).Str("task", name).Msg("background task failed")
	}
}
