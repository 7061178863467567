package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded for vendor calls
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeNotFound = "not_found"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	KYCVendorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyc_vendor_calls_total",
			Help: "Total number of calls to the KYC vendor",
		},
		[]string{"operation", "outcome"},
	)

	Submissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "onboarding_submissions_total",
			Help: "Total number of submitted onboarding applications",
		},
	)

	OTPSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_sent_total",
			Help: "Total number of OTPs sent",
		},
		[]string{"channel"},
	)
)

// RecordVendorCall counts one KYC vendor call
func RecordVendorCall(operation, outcome string) {
	KYCVendorCalls.WithLabelValues(operation, outcome).Inc()
}

// Middleware records request count and latency per route template
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry for scraping
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
