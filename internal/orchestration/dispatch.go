package orchestration

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Dispatcher runs message deliveries asynchronously on a bounded
// worker pool so senders never block on handler execution.
type Dispatcher struct {
	workers int
	queue   chan func()
	wg      sync.WaitGroup
	pending sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	mu      sync.Mutex

	metrics   DispatchMetrics
	metricsMu sync.RWMutex
}

// DispatchMetrics tracks dispatcher activity
type DispatchMetrics struct {
	Enqueued  int64
	Completed int64
}

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	Workers   int // Number of worker goroutines
	QueueSize int // Size of delivery queue
}

// DefaultDispatcherConfig returns default dispatcher configuration
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		Workers:   runtime.NumCPU(),
		QueueSize: 1000,
	}
}

// NewDispatcher creates a dispatcher and starts its workers
func NewDispatcher(config *DispatcherConfig) *Dispatcher {
	if config == nil {
		config = DefaultDispatcherConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		workers: config.Workers,
		queue:   make(chan func(), config.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// worker executes deliveries from the queue
func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case task, ok := <-d.queue:
			if !ok {
				return
			}
			task()
			d.pending.Done()

			d.metricsMu.Lock()
			d.metrics.Completed++
			d.metricsMu.Unlock()
		}
	}
}

// Enqueue schedules a delivery for asynchronous execution
func (d *Dispatcher) Enqueue(task func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("dispatcher is shut down")
	}

	// Add before the send so a fast worker cannot Done first
	d.pending.Add(1)

	select {
	case d.queue <- task:
		d.metricsMu.Lock()
		d.metrics.Enqueued++
		d.metricsMu.Unlock()
		return nil
	default:
		d.pending.Done()
		return fmt.Errorf("queue full")
	}
}

// Drain blocks until every enqueued delivery has completed. Deliveries
// may enqueue further deliveries; Drain waits for those too.
func (d *Dispatcher) Drain() {
	d.pending.Wait()
}

// GetMetrics returns current dispatcher metrics
func (d *Dispatcher) GetMetrics() DispatchMetrics {
	d.metricsMu.RLock()
	defer d.metricsMu.RUnlock()
	return d.metrics
}

// Shutdown stops accepting deliveries and waits for in-flight work
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
