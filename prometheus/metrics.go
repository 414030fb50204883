package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linktex_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Registration counters, split by kind (company admin vs operario)
	RegisterCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linktex_register_total",
			Help: "Total number of registrations",
		},
		[]string{"kind"}, // "company" or "operario"
	)

	// Work submission counter by outcome
	WorkSubmissionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linktex_work_submissions_total",
			Help: "Total number of work submissions by outcome",
		},
		[]string{"outcome"}, // "accepted", "rejected", "error"
	)

	// Units of completed work accepted by the ledger
	WorkUnitsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linktex_work_units_total",
			Help: "Total number of garment units recorded as completed",
		},
	)

	// Quota rejections: submissions refused because they exceeded the
	// remaining quota for a (size, process) pair
	QuotaRejectionCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linktex_quota_rejections_total",
			Help: "Total number of submissions rejected for exceeding the remaining quota",
		},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linktex_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linktex_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "login_failure", "invalid_token", "db_error" etc.
	)

	// Personnel workflow counter
	ApprovalCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linktex_approval_operations_total",
			Help: "Total number of personnel approval operations",
		},
		[]string{"operation"}, // "approve", "reject", "promote", "demote", "delete"
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linktex_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linktex_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// Active tokens
	ActiveTokensGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "linktex_active_tokens",
			Help: "Number of currently active authentication tokens",
		},
	)

	// Open batches per company
	OpenBatchesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linktex_open_batches",
			Help: "Number of open production batches per company",
		},
		[]string{"company_id"},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linktex_info",
			Help: "Information about the service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(WorkSubmissionCounter)
	prometheus.MustRegister(WorkUnitsCounter)
	prometheus.MustRegister(QuotaRejectionCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(ApprovalCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(ActiveTokensGauge)
	prometheus.MustRegister(OpenBatchesGauge)
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			// Record metrics
			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// IncreaseActiveTokens increments the active tokens gauge
func IncreaseActiveTokens() {
	ActiveTokensGauge.Inc()
}

// DecreaseActiveTokens decrements the active tokens gauge
func DecreaseActiveTokens() {
	ActiveTokensGauge.Dec()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordApproval records a personnel approval operation
func RecordApproval(operation string) {
	ApprovalCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordSubmission records a work submission outcome
func RecordSubmission(outcome string, units int) {
	WorkSubmissionCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
	if outcome == "accepted" {
		WorkUnitsCounter.Add(float64(units))
	}
}

// SetOpenBatches updates the open batches gauge for a company
func SetOpenBatches(companyID uint, count int) {
	OpenBatchesGauge.With(prometheus.Labels{
		"company_id": strconv.FormatUint(uint64(companyID), 10),
	}).Set(float64(count))
}
