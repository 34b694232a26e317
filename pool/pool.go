package pool

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/WeThePeopleBotball/socks/internal/logging"
)

// ErrClosed reports a submission issued after Wait or Terminate began.
var ErrClosed = errors.New("pool: closed to new tasks")

// Pool executes submitted tasks on a fixed number of worker goroutines.
// The queue is unbounded and Submit never blocks. A Pool is not reusable:
// after Wait or Terminate it stays closed.
type Pool struct {
	logger *slog.Logger

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []func()
	stopping    bool
	terminating atomic.Bool
	wg          sync.WaitGroup
}

// Option adjusts pool construction.
type Option func(*Pool)

// WithLogger routes pool lifecycle and task-panic logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New starts a pool with the given number of persistent workers. Counts
// below one are raised to one so a zero-size pool cannot swallow tasks
// nobody will run.
func New(workers int, opts ...Option) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.WithComponent(p.logger, "pool")
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	p.logger.Info("worker pool started", logging.Int("workers", workers))
	return p
}

// Submit queues task for execution by some worker. It fails with ErrClosed
// once a shutdown has begun; the check and the enqueue share one critical
// section, so no task slips in after the transition. A panic inside task is
// recovered and logged, never propagated.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	if p.stopping || p.terminating.Load() {
		p.mu.Unlock()
		return ErrClosed
	}
	p.queue = append(p.queue, p.wrap(task))
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

// Wait closes the pool, lets the workers drain every queued task, and blocks
// until all workers have exited. Safe to call more than once and from any
// goroutine; later calls just join.
func (p *Pool) Wait() {
	p.mu.Lock()
	first := !p.stopping
	p.stopping = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
	if first {
		p.logger.Info("worker pool drained")
	}
}

// Terminate closes the pool without draining: tasks already running finish,
// queued but unstarted tasks are abandoned. Blocks until all workers have
// exited. Safe to call more than once and from any goroutine.
func (p *Pool) Terminate() {
	p.mu.Lock()
	first := !p.terminating.Swap(true)
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
	if first {
		p.logger.Warn("worker pool terminated, queued tasks abandoned")
	}
}

// Terminating reports whether Terminate has been requested. Long-running
// tasks may poll it to abort early.
func (p *Pool) Terminating() bool {
	return p.terminating.Load()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for !p.terminating.Load() && !p.stopping && len(p.queue) == 0 {
			p.cond.Wait()
		}
		if p.terminating.Load() {
			p.mu.Unlock()
			return
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		task()
	}
}

// wrap re-checks the terminate flag right before the task runs, so work
// dequeued in the shutdown window is skipped, and contains panics.
func (p *Pool) wrap(task func()) func() {
	return func() {
		if p.terminating.Load() {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("task panicked", logging.Any("panic", r))
			}
		}()
		task()
	}
}
