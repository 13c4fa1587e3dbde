package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

// DefaultBacklogLimit caps messages retained while no subscriber matches them.
const DefaultBacklogLimit = 10000

// broker routes published messages to subscriptions by subject pattern.
type broker struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	closed        atomic.Bool

	// backlog holds messages no subscription matched, oldest first.
	backlog      []*delivery
	backlogLimit int

	dedupMu sync.Mutex
	seen    map[string]time.Time
}

type subscription struct {
	pattern    string
	msgCh      chan pubsub.Message
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// redeliver queues d behind whatever is already buffered. It gives up once the
// subscription ends; the recover covers a close racing the send.
func (s *subscription) redeliver(d *delivery) {
	defer func() { _ = recover() }()
	select {
	case <-s.ctx.Done():
		return
	default:
	}
	select {
	case s.msgCh <- d:
	case <-s.ctx.Done():
	}
}

func newBroker(backlogLimit int) *broker {
	return &broker{
		subscriptions: make(map[string]*subscription),
		backlogLimit:  backlogLimit,
		seen:          make(map[string]time.Time),
	}
}

// duplicate reports whether msgID was published within window, recording it otherwise.
func (b *broker) duplicate(msgID string, window time.Duration) bool {
	if msgID == "" {
		return false
	}
	now := time.Now()

	b.dedupMu.Lock()
	defer b.dedupMu.Unlock()

	if at, ok := b.seen[msgID]; ok && now.Sub(at) < window {
		return true
	}
	if len(b.seen) > 4096 {
		for id, at := range b.seen {
			if now.Sub(at) >= window {
				delete(b.seen, id)
			}
		}
	}
	b.seen[msgID] = now
	return false
}

// forget drops a recorded message id so a failed publish can be retried.
func (b *broker) forget(msgID string) {
	if msgID == "" {
		return
	}
	b.dedupMu.Lock()
	delete(b.seen, msgID)
	b.dedupMu.Unlock()
}

// publish sends a message to all matching subscriptions, or parks it in the
// backlog when none match.
func (b *broker) publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	if b.closed.Load() {
		return ErrEngineClosed
	}

	b.mu.RLock()
	matched := false
	for pattern, sub := range b.subscriptions {
		if !matchSubject(pattern, subject) {
			continue
		}
		matched = true
		msg := b.newMessage(subject, data, headers, sub)
		select {
		case sub.msgCh <- msg:
		case <-ctx.Done():
			b.mu.RUnlock()
			return ctx.Err()
		case <-sub.ctx.Done():
		}
	}
	b.mu.RUnlock()

	if !matched {
		b.mu.Lock()
		b.backlog = append(b.backlog, b.newMessage(subject, data, headers, nil))
		if over := len(b.backlog) - b.backlogLimit; over > 0 {
			b.backlog = b.backlog[over:]
		}
		b.mu.Unlock()
	}
	return nil
}

func (b *broker) newMessage(subject string, data []byte, headers map[string]string, sub *subscription) *delivery {
	return &delivery{
		subject:     subject,
		data:        data,
		headers:     headers,
		publishedAt: time.Now(),
		attempt:     1,
		sub:         sub,
	}
}

// subscribe creates a subscription for the given pattern. Backlogged messages
// matching the pattern are queued first, in publish order.
func (b *broker) subscribe(ctx context.Context, pattern string, bufSize int) (<-chan pubsub.Message, func(), error) {
	if b.closed.Load() {
		return nil, nil, ErrEngineClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscriptions[pattern] != nil {
		return nil, nil, ErrPatternSubscribed
	}

	var replay, keep []*delivery
	for _, msg := range b.backlog {
		if matchSubject(pattern, msg.subject) {
			replay = append(replay, msg)
		} else {
			keep = append(keep, msg)
		}
	}
	b.backlog = keep

	if len(replay) > bufSize {
		bufSize = len(replay)
	}

	subCtx, cancel := context.WithCancel(ctx)
	msgCh := make(chan pubsub.Message, bufSize)

	sub := &subscription{
		pattern:    pattern,
		msgCh:      msgCh,
		ctx:        subCtx,
		cancelFunc: cancel,
	}
	b.subscriptions[pattern] = sub

	for _, msg := range replay {
		msg.sub = sub
		msgCh <- msg
	}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.subscriptions[pattern] == sub {
			delete(b.subscriptions, pattern)
			cancel()
			close(msgCh)
		}
	}

	return msgCh, unsubscribe, nil
}

// backlogLen returns the number of parked messages.
func (b *broker) backlogLen() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.backlog)
}

// close shuts down the broker and all subscriptions.
func (b *broker) close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscriptions {
		sub.cancelFunc()
		close(sub.msgCh)
	}
	b.subscriptions = nil
	b.backlog = nil
	return nil
}

// isClosed returns true if the broker is closed.
func (b *broker) isClosed() bool {
	return b.closed.Load()
}
