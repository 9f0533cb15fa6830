package obs

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lukemcguire/statusaudit/result"
)

// Metrics counts batch activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	mAdmitted  prometheus.Counter
	mChecks    *prometheus.CounterVec
	mErrors    *prometheus.CounterVec
	mRedirects prometheus.Counter
	mInFlight  prometheus.Gauge
	mLatency   prometheus.Histogram
}

// NewMetrics registers the batch metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		mAdmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "statusaudit_admissions_total", Help: "Checks admitted by the rate limiter",
		}),
		mChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "statusaudit_checks_total", Help: "Completed checks by status class",
		}, []string{"class"}),
		mErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "statusaudit_transport_errors_total", Help: "Transport failures by kind",
		}, []string{"kind"}),
		mRedirects: f.NewCounter(prometheus.CounterOpts{
			Name: "statusaudit_redirects_total", Help: "Checks that followed at least one redirect",
		}),
		mInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "statusaudit_checks_in_flight", Help: "Checks started and not yet finished",
		}),
		mLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "statusaudit_check_duration_seconds",
			Help:    "Duration of single URL checks",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Admitted counts a check start granted by the rate limiter.
func (m *Metrics) Admitted() {
	if m == nil {
		return
	}
	m.mAdmitted.Inc()
}

// Started marks a check as in flight until the matching Finished.
func (m *Metrics) Started() {
	if m == nil {
		return
	}
	m.mInFlight.Inc()
}

// Finished records a completed check.
func (m *Metrics) Finished(out result.Outcome, took time.Duration) {
	if m == nil {
		return
	}
	m.mInFlight.Dec()
	m.mLatency.Observe(took.Seconds())
	m.mChecks.WithLabelValues(StatusClass(out.StatusCode)).Inc()
	if out.ErrorMessage != "" {
		m.mErrors.WithLabelValues(string(out.ErrorMessage)).Inc()
	}
	if out.RedirectType != 0 {
		m.mRedirects.Inc()
	}
}

// StatusClass buckets a status code as "2xx".."5xx", or "transport" for 0.
func StatusClass(code int) string {
	if code <= 0 {
		return "transport"
	}
	return fmt.Sprintf("%dxx", code/100)
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, for pickup by the node exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
