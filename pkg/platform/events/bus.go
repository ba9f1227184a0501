package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("event bus closed")

// Bus dispatches events to in-process subscribers. In sync mode Publish runs
// handlers before returning; with WithAsyncBuffer a worker drains a queue and
// Close waits for it. Handler failures are logged and never reach the
// publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger

	// stateMu guards closed and sends on queue.
	stateMu sync.RWMutex
	queue   chan queued
	wg      sync.WaitGroup
	closed  bool
}

type queued struct {
	ctx context.Context
	env Envelope
}

type BusOption func(*Bus)

func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// WithAsyncBuffer dispatches on a background worker with a queue of size n.
func WithAsyncBuffer(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan queued, n)
		}
	}
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{handlers: make(map[string][]Handler)}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.queue != nil {
		b.wg.Add(1)
		go b.run()
	}
	return b
}

// Subscribe registers h for events of eventType.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

func (b *Bus) Publish(ctx context.Context, env Envelope) error {
	b.stateMu.RLock()
	if b.closed {
		b.stateMu.RUnlock()
		return ErrBusClosed
	}
	if b.queue == nil {
		b.stateMu.RUnlock()
		_ = b.Dispatch(ctx, env)
		return nil
	}
	defer b.stateMu.RUnlock()
	// Detach from request cancellation; the handler outlives the request.
	b.queue <- queued{ctx: context.WithoutCancel(ctx), env: env}
	return nil
}

// Dispatch runs every subscriber for env synchronously and returns their
// joined errors. Every subscriber runs even when an earlier one fails.
func (b *Bus) Dispatch(ctx context.Context, env Envelope) error {
	var errs []error
	for _, h := range b.subscribers(env.Type) {
		if err := h(ctx, env); err != nil {
			b.logger.ErrorContext(ctx, "event handler failed",
				"event_type", env.Type,
				"event_id", env.ID,
				"aggregate_id", env.AggregateID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting events and drains the async queue.
func (b *Bus) Close() {
	b.stateMu.Lock()
	if b.closed {
		b.stateMu.Unlock()
		return
	}
	b.closed = true
	if b.queue != nil {
		close(b.queue)
	}
	b.stateMu.Unlock()
	b.wg.Wait()
}

func (b *Bus) run() {
	defer b.wg.Done()
	for item := range b.queue {
		_ = b.Dispatch(item.ctx, item.env)
	}
}

func (b *Bus) subscribers(eventType string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Handler(nil), b.handlers[eventType]...)
}
