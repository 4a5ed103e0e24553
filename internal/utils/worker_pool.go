// Package utils holds small concurrency and identifier helpers shared by the
// service layers.
package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPool runs submitted work on a fixed number of goroutines behind a
// bounded queue. Submit never blocks; a full queue rejects the work so the
// caller can report back-pressure.
type WorkerPool struct {
	workers   int
	workQueue chan func()
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
	mu        sync.RWMutex

	active atomic.Int64
}

// NewWorkerPool creates a pool with the given worker count and queue size.
// A non-positive queueSize defaults to twice the worker count.
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}
	return &WorkerPool{
		workers:   workers,
		workQueue: make(chan func(), queueSize),
		stopCh:    make(chan struct{}),
	}
}

// Start begins processing work items. Calling it again is a no-op.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return
	}
	wp.running = true

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop stops the workers and waits for in-flight work to finish. Work still
// queued is discarded.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return
	}
	wp.running = false
	close(wp.stopCh)
	wp.mu.Unlock()

	wp.wg.Wait()
}

// Submit queues work. It returns false if the queue is full or the pool is
// not running.
func (wp *WorkerPool) Submit(work func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.running {
		return false
	}

	select {
	case wp.workQueue <- work:
		return true
	default:
		return false
	}
}

// QueueDepth returns the number of queued, not yet started work items.
func (wp *WorkerPool) QueueDepth() int {
	return len(wp.workQueue)
}

// Active returns the number of work items currently running.
func (wp *WorkerPool) Active() int {
	return int(wp.active.Load())
}

// Capacity returns the queue size.
func (wp *WorkerPool) Capacity() int {
	return cap(wp.workQueue)
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.stopCh:
			return
		case work := <-wp.workQueue:
			if work == nil {
				continue
			}
			wp.active.Add(1)
			work()
			wp.active.Add(-1)
		}
	}
}

// RateLimiter is a token bucket. It bounds calls to paid upstream APIs.
type RateLimiter struct {
	rate     int
	interval time.Duration
	tokens   chan struct{}
	stopCh   chan struct{}
	running  bool
	mu       sync.Mutex
}

// NewRateLimiter allows rate operations per interval, starting full.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	if rate < 1 {
		rate = 1
	}
	rl := &RateLimiter{
		rate:     rate,
		interval: interval,
		tokens:   make(chan struct{}, rate),
		stopCh:   make(chan struct{}),
	}
	for i := 0; i < rate; i++ {
		rl.tokens <- struct{}{}
	}
	return rl
}

// Start begins token replenishment.
func (rl *RateLimiter) Start() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.running {
		return
	}
	rl.running = true
	go rl.refillTokens()
}

// Stop halts token replenishment.
func (rl *RateLimiter) Stop() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.running {
		return
	}
	rl.running = false
	close(rl.stopCh)
}

// TryWait takes a token if one is available.
func (rl *RateLimiter) TryWait() bool {
	select {
	case <-rl.tokens:
		return true
	default:
		return false
	}
}

func (rl *RateLimiter) refillTokens() {
	ticker := time.NewTicker(rl.interval / time.Duration(rl.rate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case rl.tokens <- struct{}{}:
			default:
			}
		case <-rl.stopCh:
			return
		}
	}
}
