package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_sign_attempts_total",
			Help: "Attendance sign attempts by outcome",
		},
		[]string{"result"},
	)

	SessionCodesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_codes_issued_total",
			Help: "Session codes created by lecturers",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
