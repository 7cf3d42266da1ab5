package http

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/hybridq/internal/http"

// queryTypeKey carries the classified query type from the query handler to
// the metrics middleware.
const queryTypeKey = "hybridq.query_type"

// HTTPMetrics records per-route request counts, latency and upload sizes.
type HTTPMetrics struct {
	meter       metric.Meter
	logger      *zap.Logger
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	uploadBytes metric.Int64Histogram
}

// NewHTTPMetrics creates instruments on the global meter provider.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &HTTPMetrics{
		meter:  otel.Meter(httpInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *HTTPMetrics) init() {
	var err error

	m.requests, err = m.meter.Int64Counter(
		"hybridq.http.requests",
		metric.WithDescription("API requests by route, method, status class and, for /api/query, query type"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.duration, err = m.meter.Float64Histogram(
		"hybridq.http.duration",
		metric.WithDescription("API request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	// uploads carry whole documents, so buckets run to the upload cap
	m.uploadBytes, err = m.meter.Int64Histogram(
		"hybridq.http.upload_size",
		metric.WithDescription("Request body size of document uploads"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1<<10, 16<<10, 128<<10, 1<<20, 4<<20, 16<<20, 32<<20),
	)
	if err != nil {
		m.logger.Warn("failed to create upload size histogram", zap.Error(err))
	}
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			ctx := c.Request().Context()
			attrs := requestAttributes(c)

			if m.requests != nil {
				m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
			}
			if m.uploadBytes != nil && c.Path() == uploadRoute && c.Request().ContentLength > 0 {
				m.uploadBytes.Record(ctx, c.Request().ContentLength)
			}
			return err
		}
	}
}

// requestAttributes labels a finished request. Unmatched paths share one
// route label.
func requestAttributes(c echo.Context) []attribute.KeyValue {
	route := c.Path()
	if route == "" {
		route = "unmatched"
	}
	attrs := []attribute.KeyValue{
		attribute.String("route", route),
		attribute.String("method", c.Request().Method),
		attribute.String("status_class", statusClass(c.Response().Status)),
	}
	if qt, ok := c.Get(queryTypeKey).(string); ok && qt != "" {
		attrs = append(attrs, attribute.String("query_type", qt))
	}
	return attrs
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
