package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session operations
const (
	OperationFetch = "fetch"
	OperationSave  = "save"
	OperationLogin = "login"
)

// Request results
const (
	ResultOK           = "ok"
	ResultNotFound     = "not_found"
	ResultBadRequest   = "bad_request"
	ResultUnauthorized = "unauthorized"
	ResultForbidden    = "forbidden"
	ResultError        = "error"
)

var sessionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hackerkid_session_requests_total",
	Help: "Session endpoint requests by operation and result",
}, []string{"operation", "result"})

var sessionPayloadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "hackerkid_session_payload_bytes",
	Help:    "Size of stored session documents",
	Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
})

// ObserveRequest counts one handled request
func ObserveRequest(operation, result string) {
	sessionRequests.WithLabelValues(operation, result).Inc()
}

// ObservePayload records the size of a session document
func ObservePayload(bytes int) {
	sessionPayloadBytes.Observe(float64(bytes))
}
