// Package recorder writes profile audit records with fail-closed semantics:
// the caller blocks until the record is persisted and must abort its own
// operation when Record returns an error.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	id "onboarding/pkg/domain"
	audit "onboarding/pkg/platform/audit"
	"onboarding/pkg/requestcontext"
)

type Metrics struct {
	Recorded        prometheus.Counter
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recorded: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_audit_records_total",
			Help: "Total number of profile audit records persisted",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_audit_persist_failures_total",
			Help: "Total number of profile audit records that failed to persist",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "onboarding_audit_persist_duration_seconds",
			Help:    "Time spent persisting a profile audit record",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}

type Recorder struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func New(store audit.Store, opts ...Option) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists change. Missing ID, timestamp and request id are filled
// from the context; ChangedBy falls back to the authenticated customer, then
// to the subject customer.
func (r *Recorder) Record(ctx context.Context, change audit.ProfileChange) error {
	start := time.Now()

	if change.CustomerID.IsNil() {
		return fmt.Errorf("profile audit requires CustomerID")
	}
	if change.FieldName == "" {
		return fmt.Errorf("profile audit requires FieldName")
	}

	if change.ID.IsNil() {
		change.ID = id.NewAuditRecordID()
	}
	if change.ChangedAt.IsZero() {
		change.ChangedAt = requestcontext.Now(ctx)
	}
	if change.RequestID == "" {
		change.RequestID = requestcontext.RequestID(ctx)
	}
	if change.ChangedBy == "" {
		actor := requestcontext.CustomerID(ctx)
		if actor.IsNil() {
			actor = change.CustomerID
		}
		change.ChangedBy = actor.String()
	}

	if err := r.store.Append(ctx, change); err != nil {
		if r.metrics != nil {
			r.metrics.PersistFailures.Inc()
		}
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "CRITICAL: profile audit failed",
				"customer_id", change.CustomerID.String(),
				"field", change.FieldName,
				"error", err,
			)
		}
		return fmt.Errorf("profile audit persistence failed: %w", err)
	}

	if r.metrics != nil {
		r.metrics.PersistDuration.Observe(time.Since(start).Seconds())
		r.metrics.Recorded.Inc()
	}
	return nil
}
