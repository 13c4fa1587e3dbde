package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
	"github.com/syntrixbase/tripsync/internal/metrics"
)

// Defaults for the ordered consumer.
const (
	DefaultChannelBufferSize = 100
	DefaultHandlerTimeout    = 30 * time.Second
	DefaultDrainTimeout      = 5 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
)

// Handler processes one message. A nil error acks the message; any error
// dead-letters it with ReasonOf(err).
type Handler interface {
	Handle(ctx context.Context, msg pubsub.Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg pubsub.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg pubsub.Message) error { return f(ctx, msg) }

// OrderedConsumer routes every message of a trip to the same worker, so a
// trip has at most one message in flight and its messages are handled in
// delivery order. Different trips are handled in parallel.
type OrderedConsumer struct {
	consumer       pubsub.Consumer
	handler        Handler
	deadLetter     DeadLetterSink
	numWorkers     int
	channelBufSize int
	handlerTimeout time.Duration
	workerChans    []chan pubsub.Message
	wg             sync.WaitGroup

	closing         atomic.Bool
	inFlightCount   atomic.Int32
	drainTimeout    time.Duration
	shutdownTimeout time.Duration

	logger *slog.Logger
}

// ConsumerOption configures the consumer.
type ConsumerOption func(*OrderedConsumer)

// WithChannelBufferSize sets the buffer size for worker channels.
func WithChannelBufferSize(size int) ConsumerOption {
	return func(c *OrderedConsumer) {
		if size > 0 {
			c.channelBufSize = size
		}
	}
}

// WithHandlerTimeout bounds a single Handle call.
func WithHandlerTimeout(d time.Duration) ConsumerOption {
	return func(c *OrderedConsumer) {
		if d > 0 {
			c.handlerTimeout = d
		}
	}
}

// WithDrainTimeout sets how long shutdown waits for in-flight dispatches.
func WithDrainTimeout(d time.Duration) ConsumerOption {
	return func(c *OrderedConsumer) {
		if d > 0 {
			c.drainTimeout = d
		}
	}
}

// WithShutdownTimeout sets how long shutdown waits for workers to finish.
func WithShutdownTimeout(d time.Duration) ConsumerOption {
	return func(c *OrderedConsumer) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// WithLogger sets the consumer's logger.
func WithLogger(l *slog.Logger) ConsumerOption {
	return func(c *OrderedConsumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewOrderedConsumer creates an OrderedConsumer on top of a pubsub.Consumer.
func NewOrderedConsumer(consumer pubsub.Consumer, handler Handler, deadLetter DeadLetterSink, numWorkers int, opts ...ConsumerOption) *OrderedConsumer {
	if numWorkers <= 0 {
		numWorkers = 16
	}

	c := &OrderedConsumer{
		consumer:        consumer,
		handler:         handler,
		deadLetter:      deadLetter,
		numWorkers:      numWorkers,
		channelBufSize:  DefaultChannelBufferSize,
		handlerTimeout:  DefaultHandlerTimeout,
		drainTimeout:    DefaultDrainTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "ordered-consumer")

	return c
}

// Start consumes until ctx is cancelled, then drains and stops the workers.
func (c *OrderedConsumer) Start(ctx context.Context) error {
	msgCh, err := c.consumer.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.workerChans = make([]chan pubsub.Message, c.numWorkers)
	for i := 0; i < c.numWorkers; i++ {
		c.workerChans[i] = make(chan pubsub.Message, c.channelBufSize)
		c.wg.Add(1)
		go c.workerLoop(ctx, i)
	}

	c.logger.Info("Ordered consumer started", "num_workers", c.numWorkers)

	for msg := range msgCh {
		c.dispatch(msg)
	}

	// Phase 1: the subscription channel is closed; refuse stragglers.
	c.logger.Info("Stopping ordered consumer...")
	c.closing.Store(true)

	// Phase 2: wait for in-flight dispatches.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), c.drainTimeout)
	defer drainCancel()
	c.waitForDrain(drainCtx)

	// Phase 3: close worker channels; workers finish what is queued.
	for _, ch := range c.workerChans {
		close(ch)
	}

	// Phase 4: wait for workers.
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
	defer shutdownCancel()

	select {
	case <-done:
		c.logger.Info("All workers stopped gracefully")
	case <-shutdownCtx.Done():
		c.logger.Warn("Shutdown timeout exceeded, some workers may still be running")
	}

	return nil
}

func (c *OrderedConsumer) waitForDrain(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.inFlightCount.Load() == 0 {
			return
		}
		select {
		case <-ctx.Done():
			c.logger.Warn("Drain timeout, messages still in-flight", "remaining", c.inFlightCount.Load())
			return
		case <-ticker.C:
		}
	}
}

// PartitionKey returns the key used to route msg to a worker: the trip
// number header, or the subject when the header is missing.
func PartitionKey(msg pubsub.Message) string {
	if key := msg.Header(HeaderTripNumber); key != "" {
		return key
	}
	return msg.Subject()
}

func (c *OrderedConsumer) workerFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(c.numWorkers))
}

func (c *OrderedConsumer) dispatch(msg pubsub.Message) {
	c.inFlightCount.Add(1)
	defer c.inFlightCount.Add(-1)

	if c.closing.Load() {
		c.logger.Warn("Consumer is closing, NAK message for redelivery", "subject", msg.Subject())
		_ = msg.Nak()
		return
	}

	c.workerChans[c.workerFor(PartitionKey(msg))] <- msg
}

func (c *OrderedConsumer) workerLoop(ctx context.Context, id int) {
	defer c.wg.Done()

	// Handlers run to completion even after ctx is cancelled.
	base := context.WithoutCancel(ctx)

	for msg := range c.workerChans[id] {
		c.process(base, id, msg)
	}
}

func (c *OrderedConsumer) process(ctx context.Context, id int, msg pubsub.Message) {
	hctx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
	err := c.handler.Handle(hctx, msg)
	cancel()

	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Error("Failed to ack message", "worker_id", id, "subject", msg.Subject(), "error", ackErr)
		}
		return
	}

	reason := ReasonOf(err)
	if c.deadLetter == nil {
		c.logger.Error("Terminating message without dead-letter sink", "worker_id", id, "reason", reason, "error", err)
		_ = msg.TermWithReason(reason)
		return
	}

	dctx, dcancel := context.WithTimeout(ctx, c.handlerTimeout)
	defer dcancel()
	if dlErr := c.deadLetter.DeadLetter(dctx, msg, reason, err.Error()); dlErr != nil {
		c.logger.Error("Dead-letter failed, NAK for redelivery", "worker_id", id, "reason", reason, "error", dlErr)
		metrics.ProjectorOutcomes.WithLabelValues(metrics.OutcomeRedelivered).Inc()
		_ = msg.Nak()
	}
}
