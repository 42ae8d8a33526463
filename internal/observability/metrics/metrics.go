package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// FrontendMetrics exposes counters/histograms for backend calls and the
// booking/admin flows driven through them.
type FrontendMetrics struct {
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	bookingsTotal   *prometheus.CounterVec
	statusChanges   *prometheus.CounterVec
	sessionsEnded   *prometheus.CounterVec
}

func NewFrontendMetrics(reg prometheus.Registerer) *FrontendMetrics {
	m := &FrontendMetrics{
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docbook",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total backend API calls by method and HTTP status (0 = no response)",
		}, []string{"method", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docbook",
			Subsystem: "upstream",
			Name:      "request_seconds",
			Help:      "Latency of backend API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docbook",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Appointment booking submissions by outcome",
		}, []string{"outcome"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docbook",
			Subsystem: "admin",
			Name:      "status_changes_total",
			Help:      "Admin appointment status changes by target status and outcome",
		}, []string{"status", "outcome"}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docbook",
			Subsystem: "session",
			Name:      "ended_total",
			Help:      "Admin sessions ended by reason",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.upstreamTotal, m.upstreamLatency, m.bookingsTotal, m.statusChanges, m.sessionsEnded)
	return m
}

func (m *FrontendMetrics) ObserveUpstream(method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.upstreamLatency.WithLabelValues(method).Observe(seconds)
}

func (m *FrontendMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *FrontendMetrics) ObserveStatusChange(status string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.statusChanges.WithLabelValues(status, outcome).Inc()
}

func (m *FrontendMetrics) ObserveSessionEnded(reason string) {
	if m == nil {
		return
	}
	m.sessionsEnded.WithLabelValues(reason).Inc()
}
