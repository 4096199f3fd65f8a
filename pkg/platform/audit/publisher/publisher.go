// Package publisher delivers audit events to a downstream sink, optionally
// through an async buffer, and stops hammering a failing sink with a circuit
// breaker. Audit delivery is fail-open: callers never fail because of it.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"idmask/pkg/platform/audit"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is full.
var ErrBufferFull = errors.New("audit buffer full")

// ErrCircuitOpen is returned when the breaker is dropping events.
var ErrCircuitOpen = errors.New("audit sink circuit open")

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")

// DefaultDeliveryTimeout bounds one sink call made by the async worker.
const DefaultDeliveryTimeout = 5 * time.Second

type Publisher struct {
	sink            audit.Publisher
	logger          *slog.Logger
	metrics         *Metrics
	breaker         *CircuitBreaker
	deliveryTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	buffer chan audit.Event
	done   chan struct{}
	// abort cancels in-flight async deliveries when Close gives up waiting.
	base  context.Context
	abort context.CancelFunc
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit enqueue and return; a worker drains the queue.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

// WithCircuitBreaker drops events for cooldown after threshold consecutive
// sink failures.
func WithCircuitBreaker(threshold int, cooldown time.Duration) Option {
	return func(p *Publisher) {
		p.breaker = NewCircuitBreaker(threshold, cooldown)
	}
}

// WithDeliveryTimeout bounds each async sink call. Not positive keeps the
// default.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.deliveryTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(sink audit.Publisher, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, deliveryTimeout: DefaultDeliveryTimeout}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	p.base, p.abort = context.WithCancel(context.Background())
	p.done = make(chan struct{})
	if p.buffer != nil {
		go p.drain()
	} else {
		close(p.done)
	}
	return p
}

// Emit delivers event, stamping Timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if p.buffer == nil {
		return p.deliver(ctx, event)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.buffer <- event:
		return nil
	default:
		if p.metrics != nil {
			p.metrics.IncDropped("buffer_full")
		}
		return ErrBufferFull
	}
}

// Close stops accepting events and waits until the buffer is drained or ctx
// ends. When ctx ends first, in-flight and queued deliveries are cancelled
// and ctx's error is returned.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		if p.buffer != nil {
			close(p.buffer)
		}
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		p.abort()
		return nil
	case <-ctx.Done():
		p.abort()
		return ctx.Err()
	}
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(p.base, p.deliveryTimeout)
		err := p.deliver(ctx, event)
		cancel()
		if err != nil && !errors.Is(err, ErrCircuitOpen) {
			p.logger.Warn("audit delivery failed", "action", event.Action, "error", err)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, event audit.Event) error {
	if p.breaker != nil && !p.breaker.Allow() {
		if p.metrics != nil {
			p.metrics.IncDropped("circuit_open")
		}
		return ErrCircuitOpen
	}
	err := p.sink.Emit(ctx, event)
	if p.breaker != nil {
		if err != nil {
			p.breaker.RecordFailure()
		} else {
			p.breaker.RecordSuccess()
		}
		if p.metrics != nil {
			p.metrics.SetCircuitBreakerState(p.breaker.IsOpen())
		}
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.IncFailures()
		}
		return err
	}
	if p.metrics != nil {
		p.metrics.IncDelivered()
	}
	return nil
}

// Fanout emits to every publisher and joins their errors.
type Fanout []audit.Publisher

func (f Fanout) Emit(ctx context.Context, event audit.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
