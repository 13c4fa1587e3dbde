// Package publisher delivers every trip mutation's change event to the
// ordered channel and to realtime subscribers.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/syntrixbase/tripsync/internal/channel"
	"github.com/syntrixbase/tripsync/internal/events"
	"github.com/syntrixbase/tripsync/internal/metrics"
)

// Defaults for the dispatcher.
const (
	DefaultTimeout   = 5 * time.Second
	DefaultWorkers   = 8
	DefaultQueueSize = 1024
)

// Notifier pushes an event to live subscribers.
type Notifier interface {
	Notify(ctx context.Context, ev *events.ChangeEvent) error
}

// Publisher fans change events out to its sinks on background workers.
// Events for one trip go through the same worker, so each sink sees them in
// publish order. Sink failures are logged and counted, never returned: the
// mutation that produced the event has already been committed.
type Publisher struct {
	channel    channel.Sender
	notifier   Notifier
	timeout    time.Duration
	numWorkers int
	queueSize  int
	logger     *slog.Logger

	queues []chan job
	wg     sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

type job struct {
	ctx context.Context
	ev  *events.ChangeEvent
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithTimeout sets the per-sink timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithWorkers sets the number of partition workers.
func WithWorkers(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.numWorkers = n
		}
	}
}

// WithQueueSize sets the per-worker queue length. Events published while a
// worker's queue is full are dropped.
func WithQueueSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Publisher and starts its workers. Either sink may be nil.
// Close stops the workers.
func New(sender channel.Sender, notifier Notifier, opts ...Option) *Publisher {
	p := &Publisher{
		channel:    sender,
		notifier:   notifier,
		timeout:    DefaultTimeout,
		numWorkers: DefaultWorkers,
		queueSize:  DefaultQueueSize,
		logger:     slog.Default().With("component", "publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.queues = make([]chan job, p.numWorkers)
	for i := range p.queues {
		p.queues[i] = make(chan job, p.queueSize)
		p.wg.Add(1)
		go p.worker(p.queues[i])
	}
	return p
}

// Publish queues ev for delivery and returns without waiting on either
// sink. Delivery runs detached from ctx's cancellation so a finished
// request does not abort it.
func (p *Publisher) Publish(ctx context.Context, ev *events.ChangeEvent) {
	if ev == nil {
		return
	}
	j := job{ctx: context.WithoutCancel(ctx), ev: ev}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop(ev, "publisher closed")
		return
	}
	select {
	case p.queues[p.workerFor(ev.TripNumber)] <- j:
	default:
		p.drop(ev, "queue full")
	}
}

// Close stops accepting events and waits, bounded by ctx, for queued ones
// to be delivered. It is safe to call more than once.
func (p *Publisher) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn("Timeout waiting for queued change events")
		return ctx.Err()
	}
}

func (p *Publisher) workerFor(tripNumber string) int {
	return int(xxhash.Sum64String(tripNumber) % uint64(len(p.queues)))
}

func (p *Publisher) worker(queue <-chan job) {
	defer p.wg.Done()
	for j := range queue {
		if p.channel != nil {
			p.send(j.ctx, "channel", j.ev, func(ctx context.Context) error { return p.channel.Send(ctx, j.ev) })
		}
		if p.notifier != nil {
			p.send(j.ctx, "fanout", j.ev, func(ctx context.Context) error { return p.notifier.Notify(ctx, j.ev) })
		}
	}
}

func (p *Publisher) drop(ev *events.ChangeEvent, why string) {
	metrics.EventsPublished.WithLabelValues(string(ev.ChangeType), metrics.ResultDropped).Inc()
	p.logger.Error("Dropped change event",
		"reason", why,
		"trip_number", ev.TripNumber,
		"version", ev.Version,
		"change_type", ev.ChangeType)
}

func (p *Publisher) send(base context.Context, sink string, ev *events.ChangeEvent, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(base, p.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.PublishLatency.WithLabelValues(sink).Observe(time.Since(start).Seconds())

	if sink == "channel" {
		result := metrics.ResultOK
		if err != nil {
			result = metrics.ResultError
		}
		metrics.EventsPublished.WithLabelValues(string(ev.ChangeType), result).Inc()
	}

	if err != nil {
		p.logger.Error("Failed to publish change event",
			"sink", sink,
			"trip_number", ev.TripNumber,
			"version", ev.Version,
			"change_type", ev.ChangeType,
			"error", err)
	}
}
