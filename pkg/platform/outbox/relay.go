package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"onboarding/pkg/platform/circuit"
	"onboarding/pkg/platform/tx"
)

// ErrCircuitOpen is returned by PublishBatch while the broker is considered down.
var ErrCircuitOpen = errors.New("outbox relay circuit open")

// Store is the relay's view of the outbox table.
type Store interface {
	FetchUnpublished(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
	RecordAttempt(ctx context.Context, entryID uuid.UUID) error
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

type Metrics struct {
	Published           prometheus.Counter
	PublishFailures     prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_outbox_published_total",
			Help: "Total number of outbox entries published to Kafka",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_outbox_publish_failures_total",
			Help: "Total number of failed outbox publish attempts",
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "onboarding_outbox_circuit_breaker_state",
			Help: "Current relay circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

func (m *Metrics) setCircuitBreakerState(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}

// Relay moves committed outbox entries to a Kafka topic. Entries are keyed
// by aggregate id so events for one customer stay ordered within a partition.
type Relay struct {
	store      Store
	transactor tx.Transactor
	producer   Producer
	topic      string
	breaker    *circuit.Breaker
	logger     *slog.Logger
	metrics    *Metrics

	batchSize int
	interval  time.Duration
	retention time.Duration
	lastPurge time.Time
	now       func() time.Time
}

type RelayOption func(*Relay)

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

func WithMetrics(m *Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func WithBreaker(b *circuit.Breaker) RelayOption {
	return func(r *Relay) { r.breaker = b }
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRetention sets how long published entries are kept before purging.
func WithRetention(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.retention = d
		}
	}
}

func WithClock(now func() time.Time) RelayOption {
	return func(r *Relay) { r.now = now }
}

func NewRelay(store Store, transactor tx.Transactor, producer Producer, topic string, opts ...RelayOption) *Relay {
	r := &Relay{
		store:      store,
		transactor: transactor,
		producer:   producer,
		topic:      topic,
		batchSize:  100,
		interval:   time.Second,
		retention:  7 * 24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuit.New("outbox-relay")
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run publishes batches every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.PublishBatch(ctx); err != nil && !errors.Is(err, ErrCircuitOpen) {
				r.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
			}
			r.purge(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PublishBatch publishes up to one batch of entries in creation order and
// returns how many were published. It stops at the first produce failure so
// later entries are not published ahead of it.
func (r *Relay) PublishBatch(ctx context.Context) (int, error) {
	if !r.breaker.Allow() {
		return 0, ErrCircuitOpen
	}

	published := 0
	var produceErr error
	err := r.transactor.RunInTx(ctx, "outbox-relay", func(ctx context.Context) error {
		entries, err := r.store.FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}
		done := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			headers := map[string]string{"event_type": e.EventType}
			if err := r.producer.Produce(ctx, r.topic, []byte(e.AggregateID), e.Payload, headers); err != nil {
				produceErr = fmt.Errorf("publish outbox entry %s: %w", e.ID, err)
				r.recordFailure(ctx, err)
				if err := r.store.RecordAttempt(ctx, e.ID); err != nil {
					return err
				}
				break
			}
			r.recordSuccess(ctx)
			done = append(done, e.ID)
		}
		if err := r.store.MarkPublished(ctx, done, r.now()); err != nil {
			return err
		}
		published = len(done)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if r.metrics != nil {
		r.metrics.Published.Add(float64(published))
	}
	return published, produceErr
}

func (r *Relay) recordFailure(ctx context.Context, err error) {
	if r.metrics != nil {
		r.metrics.PublishFailures.Inc()
	}
	_, change := r.breaker.RecordFailure()
	if change.Opened {
		if r.metrics != nil {
			r.metrics.setCircuitBreakerState(true)
		}
		r.logger.WarnContext(ctx, "outbox relay circuit opened", "breaker", r.breaker.Name(), "error", err)
	}
}

func (r *Relay) recordSuccess(ctx context.Context) {
	_, change := r.breaker.RecordSuccess()
	if change.Closed {
		if r.metrics != nil {
			r.metrics.setCircuitBreakerState(false)
		}
		r.logger.InfoContext(ctx, "outbox relay circuit closed", "breaker", r.breaker.Name())
	}
}

func (r *Relay) purge(ctx context.Context) {
	now := r.now()
	if now.Sub(r.lastPurge) < time.Hour {
		return
	}
	r.lastPurge = now
	n, err := r.store.DeletePublishedBefore(ctx, now.Add(-r.retention))
	if err != nil {
		r.logger.ErrorContext(ctx, "outbox purge failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "outbox purged", "count", n)
	}
}
