package mirror

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
)

// Pool runs a fixed number of workers that hand every submitted value to a
// single handler. The queue is unbounded so handlers may submit more work
// without ever blocking on the pool.
type Pool[T any] struct {
	handle func(T)
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []T
	closed bool

	pending sync.WaitGroup // submitted but not yet finished
	workers sync.WaitGroup
	size    int
}

// NewPool starts size workers. A size below one uses runtime.NumCPU().
func NewPool[T any](size int, logger *slog.Logger, handle func(T)) *Pool[T] {
	if size < 1 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	p := &Pool[T]{
		handle: handle,
		logger: logger,
		size:   size,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < size; i++ {
		p.workers.Add(1)
		go p.work()
	}
	return p
}

// Size returns the number of workers
func (p *Pool[T]) Size() int {
	return p.size
}

// Submit queues v. It is safe to call from inside the handler.
// Submitting to a closed pool panics.
func (p *Pool[T]) Submit(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		panic("mirror: submit on closed pool")
	}
	p.pending.Add(1)
	p.queue = append(p.queue, v)
	p.cond.Signal()
}

// Wait blocks until the queue is empty and every worker is idle.
func (p *Pool[T]) Wait() {
	p.pending.Wait()
}

// Close stops the workers once the queue has drained
func (p *Pool[T]) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.workers.Wait()
}

func (p *Pool[T]) work() {
	defer p.workers.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		var zero T
		v := p.queue[0]
		p.queue[0] = zero
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(v)
	}
}

// run invokes the handler and keeps a panicking task from taking down the
// worker.
func (p *Pool[T]) run(v T) {
	defer p.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "task", fmt.Sprintf("%v", v), "panic", r)
		}
	}()

	p.handle(v)
}
