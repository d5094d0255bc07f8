package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultWriteTimeout bounds a single sink write.
	DefaultWriteTimeout = 3 * time.Second
	// DefaultBufferSize is the number of events queued ahead of the writers.
	DefaultBufferSize = 1024
	// DefaultWriters is the number of goroutines draining the buffer.
	DefaultWriters = 4
)

// Sink persists authorization events.
type Sink interface {
	Write(ctx context.Context, ev Event) error
}

// queued keeps the request context values without its cancellation.
type queued struct {
	ctx context.Context
	ev  Event
}

// EmitterOption tunes an Emitter.
type EmitterOption func(*Emitter)

// WithBuffer sets the queue size and the number of writers. Non-positive values keep the defaults.
func WithBuffer(size, writers int) EmitterOption {
	return func(e *Emitter) {
		if size > 0 {
			e.bufferSize = size
		}
		if writers > 0 {
			e.writers = writers
		}
	}
}

// Emitter records authorization outcomes without blocking the request.
// Events are queued on a bounded buffer; when it is full the event is dropped and counted.
type Emitter struct {
	sink       Sink
	logger     *slog.Logger
	timeout    time.Duration
	bufferSize int
	writers    int
	now        func() time.Time
	written    func()
	dropped    func()

	events  chan queued
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	drops   atomic.Int64
	started sync.Once
}

// NewEmitter constructs an Emitter writing to sink.
func NewEmitter(sink Sink, logger *slog.Logger, timeout time.Duration, opts ...EmitterOption) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	e := &Emitter{
		sink:       sink,
		logger:     logger,
		timeout:    timeout,
		bufferSize: DefaultBufferSize,
		writers:    DefaultWriters,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.events = make(chan queued, e.bufferSize)
	return e
}

// OnWrite registers fn to be called after every successful sink write.
func (e *Emitter) OnWrite(fn func()) {
	e.written = fn
}

// OnDrop registers fn to be called for every event dropped on a full buffer.
func (e *Emitter) OnDrop(fn func()) {
	e.dropped = fn
}

// Dropped returns the number of events dropped so far.
func (e *Emitter) Dropped() int64 {
	if e == nil {
		return 0
	}
	return e.drops.Load()
}

// Record queues ev for the writers. Denials are always recorded; allows only when sensitive.
// It never blocks: sink failures are logged and events that do not fit the buffer are dropped.
func (e *Emitter) Record(ctx context.Context, ev Event, sensitive bool) {
	if e == nil || e.sink == nil {
		return
	}
	if ev.Allowed && !sensitive {
		return
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.At.IsZero() {
		ev.At = e.now().UTC()
	}
	e.started.Do(e.start)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.drop(ev, "emitter closed")
		return
	}
	select {
	case e.events <- queued{ctx: context.WithoutCancel(ctx), ev: ev}:
	default:
		e.drop(ev, "audit buffer full")
	}
}

func (e *Emitter) drop(ev Event, msg string) {
	e.drops.Add(1)
	if e.dropped != nil {
		e.dropped()
	}
	e.logger.Warn(msg,
		slog.String("event_id", ev.ID.String()),
		slog.Int64("tenant_id", ev.TenantID),
		slog.String("route", ev.Route),
		slog.String("reason", ev.Reason))
}

func (e *Emitter) start() {
	for i := 0; i < e.writers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for q := range e.events {
				e.write(q.ctx, q.ev)
			}
		}()
	}
}

func (e *Emitter) write(parent context.Context, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("audit sink panic", slog.String("event_id", ev.ID.String()), slog.Any("panic", rec))
		}
	}()
	ctx, cancel := context.WithTimeout(parent, e.timeout)
	defer cancel()
	if err := e.sink.Write(ctx, ev); err != nil {
		e.logger.Error("audit write failed",
			slog.String("event_id", ev.ID.String()),
			slog.Int64("tenant_id", ev.TenantID),
			slog.String("route", ev.Route),
			slog.Any("error", err))
		return
	}
	if e.written != nil {
		e.written()
	}
}

// Close stops accepting events and waits until the buffer is drained or ctx is done.
// Events recorded after Close are dropped.
func (e *Emitter) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		e.started.Do(e.start)
		close(e.events)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit: flush: %w", ctx.Err())
	}
}
