// Package metrics owns the prometheus registry for the tracker.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	scans          *prometheus.CounterVec
	attendance     prometheus.Counter
	queueOps       *prometheus.CounterVec
	publishErrors  prometheus.Counter
	purgedEvents   prometheus.Counter
	requestLatency *prometheus.HistogramVec
	panicsTotal    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_scans_total",
			Help: "Card scans reported by scanners, by outcome.",
		}, []string{"outcome"}),
		attendance: f.NewCounter(prometheus.CounterOpts{
			Name: "tracker_attendance_events_total",
			Help: "Attendance events recorded.",
		}),
		queueOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_queue_operations_total",
			Help: "Binding queue operations, by kind.",
		}, []string{"op"}),
		publishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "tracker_feed_publish_errors_total",
			Help: "Events that could not be handed to the attendance feed.",
		}),
		purgedEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "tracker_attendance_purged_total",
			Help: "Attendance events removed by the retention loop.",
		}),
		requestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.3, 0.6, 1, 3, 6},
		}, []string{"method", "route", "status"}),
		panicsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tracker_http_panics_recovered_total",
			Help: "HTTP requests recovered from a handler panic.",
		}),
	}
}

func (m *Metrics) ObserveScan(outcome string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAttendance() {
	if m == nil {
		return
	}
	m.attendance.Inc()
}

func (m *Metrics) ObserveQueue(op string) {
	if m == nil {
		return
	}
	m.queueOps.WithLabelValues(op).Inc()
}

func (m *Metrics) ObservePublishError() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

func (m *Metrics) ObservePurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.purgedEvents.Add(float64(n))
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requestLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) ObservePanic() {
	if m == nil {
		return
	}
	m.panicsTotal.Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
