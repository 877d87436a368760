package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsMiddleware records request counts, durations and in-flight requests.
// Requests are labelled with the route pattern rather than the raw path, plus the
// provider path parameter when the route has one.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	meter := meterProvider.Meter(namespace)

	requests, err := meter.Int64Counter(
		fmt.Sprintf("%s_http_requests_total", namespace),
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return passthrough
	}

	duration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_http_request_duration_seconds", namespace),
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return passthrough
	}

	inFlight, err := meter.Int64UpDownCounter(
		fmt.Sprintf("%s_http_requests_in_flight", namespace),
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return passthrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		inFlight.Add(ctx, 1)

		c.Next()

		inFlight.Add(ctx, -1)
		status := c.Writer.Status()
		attrs := []attribute.KeyValue{
			attribute.String("method", c.Request.Method),
			attribute.String("route", routeLabel(c.FullPath())),
			attribute.String("status_code", strconv.Itoa(status)),
			attribute.String("status_class", statusClass(status)),
		}
		if provider := c.Param("provider"); provider != "" {
			attrs = append(attrs, attribute.String("provider", provider))
		}

		set := metric.WithAttributes(attrs...)
		requests.Add(ctx, 1, set)
		duration.Record(ctx, time.Since(start).Seconds(), set)
	}
}

func passthrough(c *gin.Context) {
	c.Next()
}

// routeLabel returns the matched route pattern, or "unmatched" for 404s so probes
// against random paths cannot inflate cardinality.
func routeLabel(fullPath string) string {
	if fullPath == "" {
		return "unmatched"
	}
	return fullPath
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
