package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchesTotal counts dispatch attempts per trigger and outcome.
	// Status is one of "started", "decode_error", "run_error".
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_dispatches_total",
			Help: "Total number of job dispatch attempts.",
		},
		[]string{"trigger", "status"},
	)

	// PushRequestsTotal counts push deliveries by trigger path and HTTP code.
	PushRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_requests_total",
			Help: "Total number of push deliveries handled.",
		},
		[]string{"trigger", "code"},
	)
)
