package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DedupHandler collapses bursts of identical warnings and errors, such as a
// cache backend failing on every projected event. The first record of a burst
// is written immediately; repeats inside the window are counted and reported
// once with a repeated_count attribute when the window closes.
//
// Records below MinLevel pass straight through.
type DedupHandler struct {
	next  slog.Handler
	state *dedupState
}

type dedupState struct {
	window   time.Duration
	minLevel slog.Level
	now      func() time.Time

	mu      sync.Mutex
	entries map[uint64]*burst

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type burst struct {
	record  slog.Record
	handler slog.Handler
	opened  time.Time
	repeats int
}

// NewDedupHandler wraps next. window <= 0 defaults to one second.
func NewDedupHandler(next slog.Handler, window time.Duration, minLevel slog.Level) *DedupHandler {
	if window <= 0 {
		window = time.Second
	}
	st := &dedupState{
		window:   window,
		minLevel: minLevel,
		now:      time.Now,
		entries:  make(map[uint64]*burst),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go st.loop()
	return &DedupHandler{next: next, state: st}
}

func (h *DedupHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *DedupHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.state.minLevel {
		return h.next.Handle(ctx, r)
	}

	key := fingerprint(r)
	st := h.state

	st.mu.Lock()
	if b, ok := st.entries[key]; ok {
		b.repeats++
		st.mu.Unlock()
		return nil
	}
	st.entries[key] = &burst{record: r.Clone(), handler: h.next, opened: st.now()}
	st.mu.Unlock()

	return h.next.Handle(ctx, r)
}

func (h *DedupHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &DedupHandler{next: h.next.WithAttrs(attrs), state: h.state}
}

func (h *DedupHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &DedupHandler{next: h.next.WithGroup(name), state: h.state}
}

// Close reports any open bursts and stops the background flusher.
func (h *DedupHandler) Close() error {
	h.state.once.Do(func() { close(h.state.stop) })
	<-h.state.done
	return nil
}

func (st *dedupState) loop() {
	defer close(st.done)
	ticker := time.NewTicker(st.window / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			st.flush(false)
		case <-st.stop:
			st.flush(true)
			return
		}
	}
}

// flush closes bursts older than the window, or all of them when force is set.
func (st *dedupState) flush(force bool) {
	now := st.now()

	st.mu.Lock()
	var closed []*burst
	for key, b := range st.entries {
		if force || now.Sub(b.opened) >= st.window {
			delete(st.entries, key)
			if b.repeats > 0 {
				closed = append(closed, b)
			}
		}
	}
	st.mu.Unlock()

	for _, b := range closed {
		r := slog.NewRecord(now, b.record.Level, b.record.Message, 0)
		b.record.Attrs(func(a slog.Attr) bool {
			r.AddAttrs(a)
			return true
		})
		r.AddAttrs(slog.Int("repeated_count", b.repeats))
		_ = b.handler.Handle(context.Background(), r)
	}
}

// fingerprint hashes level, message and attributes but not the timestamp.
func fingerprint(r slog.Record) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(r.Level.String())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(a.Key)
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(a.Value.String())
		return true
	})
	return d.Sum64()
}
