package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

// Inspector consumes the dead-letter stream and keeps the most recent
// records in memory for operators.
type Inspector struct {
	consumer pubsub.Consumer
	limit    int

	mu      sync.RWMutex
	records []Record
	next    int
	full    bool
	total   uint64
}

// NewInspector creates an Inspector keeping at most limit records.
func NewInspector(consumer pubsub.Consumer, limit int) *Inspector {
	if limit <= 0 {
		limit = 500
	}
	return &Inspector{
		consumer: consumer,
		limit:    limit,
		records:  make([]Record, limit),
	}
}

// Start consumes until ctx is cancelled.
func (i *Inspector) Start(ctx context.Context) error {
	msgCh, err := i.consumer.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to dead-letter stream: %w", err)
	}

	for msg := range msgCh {
		var rec Record
		if err := json.Unmarshal(msg.Data(), &rec); err != nil {
			slog.Warn("Unreadable dead-letter record", "subject", msg.Subject(), "error", err)
			_ = msg.Term()
			continue
		}
		i.add(rec)
		_ = msg.Ack()
	}
	return nil
}

func (i *Inspector) add(rec Record) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.records[i.next] = rec
	i.next = (i.next + 1) % i.limit
	if i.next == 0 {
		i.full = true
	}
	i.total++
}

// Records returns the retained records, newest first.
func (i *Inspector) Records() []Record {
	i.mu.RLock()
	defer i.mu.RUnlock()

	n := i.next
	if i.full {
		n = i.limit
	}
	out := make([]Record, 0, n)
	for k := 1; k <= n; k++ {
		out = append(out, i.records[(i.next-k+i.limit)%i.limit])
	}
	return out
}

// Total returns how many records were seen since start.
func (i *Inspector) Total() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.total
}
