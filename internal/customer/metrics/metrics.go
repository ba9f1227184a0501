package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for customer onboarding.
type Metrics struct {
	CustomersRegistered prometheus.Counter
	Verifications       *prometheus.CounterVec
	TokensIssued        prometheus.Counter
	TokensSwept         prometheus.Counter
	ResendRateLimited   prometheus.Counter
	ProfilesCompleted   prometheus.Counter
	ProfileFieldChanges *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
}

// New registers onboarding metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers onboarding metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CustomersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_customers_registered_total",
			Help: "Total number of customer accounts created",
		}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_email_verifications_total",
			Help: "Email verification attempts by outcome",
		}, []string{"outcome"}),
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_verification_tokens_issued_total",
			Help: "Total number of verification tokens issued",
		}),
		TokensSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_verification_tokens_swept_total",
			Help: "Expired verification tokens removed by the sweeper",
		}),
		ResendRateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_resend_rate_limited_total",
			Help: "Resend requests refused by the hourly limit",
		}),
		ProfilesCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_profiles_completed_total",
			Help: "Customers that reached PROFILE_COMPLETE",
		}),
		ProfileFieldChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_profile_field_changes_total",
			Help: "Audited profile field changes by field",
		}, []string{"field"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboarding_operation_duration_seconds",
			Help:    "Duration of onboarding service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementRegistered() {
	m.CustomersRegistered.Inc()
}

// IncrementVerification records a verification outcome:
// verified, already_verified, not_found, or expired.
func (m *Metrics) IncrementVerification(outcome string) {
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementTokensIssued() {
	m.TokensIssued.Inc()
}

func (m *Metrics) AddTokensSwept(n int) {
	m.TokensSwept.Add(float64(n))
}

func (m *Metrics) IncrementResendRateLimited() {
	m.ResendRateLimited.Inc()
}

func (m *Metrics) IncrementProfilesCompleted() {
	m.ProfilesCompleted.Inc()
}

func (m *Metrics) IncrementFieldChange(field string) {
	m.ProfileFieldChanges.WithLabelValues(field).Inc()
}

// ObserveOperation records the duration of operation. Call with time.Now()
// captured at the start.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
