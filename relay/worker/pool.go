// Package worker provides an asynchronous worker pool that publishes
// generation telemetry using the provided eventstream.Publisher.
//
// The pool decouples publishing from the relay's streaming hot path so a slow
// or unavailable event backend never delays tokens on their way to a client.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/scribe/pkg/eventstream"
	"github.com/papercomputeco/scribe/pkg/logger"
)

var (
	defaultNumWorkers     uint = 2
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Event *eventstream.GenerationEvent
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every generation event.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds a single publish call (defaults to 10s).
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Pool publishes generation events asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, fmt.Errorf("worker pool requires a publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.PublishTimeout == 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: log,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"request_id", job.Event.Request.RequestID,
			"outcome", job.Event.Result.Outcome,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"request_id", job.Event.Request.RequestID,
			"outcome", job.Event.Result.Outcome,
		)
		return false
	}
}

// Close signals workers to stop, waits for in-flight jobs to drain, and then
// closes the publisher. Call this during graceful shutdown after the relay
// HTTP server has stopped.
func (p *Pool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
		err = p.config.Publisher.Close()
	})
	return err
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("telemetry worker stopped", "worker_id", id)
}

// processJob publishes one event. Failures are logged and the event is
// dropped; telemetry never retries into the hot path.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishGeneration(ctx, job.Event); err != nil {
		p.logger.Warn("failed to publish generation event",
			"request_id", job.Event.Request.RequestID,
			"error", err,
		)
		return
	}

	p.logger.Debug("generation event published",
		"event_id", job.Event.EventID,
		"request_id", job.Event.Request.RequestID,
	)
}
