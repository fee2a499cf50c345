package main

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var explorerRequestCount = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "miniscan",
		Subsystem: "explorer",
		Name:      "request_total",
		Help:      "Total number of block explorer API requests",
	},
	[]string{"network", "action", "status"},
)

var explorerRequestDurationMillis = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "miniscan",
		Subsystem: "explorer",
		Name:      "request_duration_millis",
		Help:      "Duration of block explorer API requests in milliseconds",
		Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2000, 5000, 10000},
	},
	[]string{"network", "action", "status"},
)

var httpRequestCount = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "miniscan",
		Subsystem: "http",
		Name:      "request_total",
		Help:      "Total number of handled HTTP requests",
	},
	[]string{"route", "status"},
)

func observeExplorerRequest(network, action, status string, t0 time.Time) {
	explorerRequestCount.WithLabelValues(network, action, status).Inc()
	explorerRequestDurationMillis.WithLabelValues(network, action, status).Observe(float64(time.Since(t0).Milliseconds()))
}

func observeExplorerRequestCode(network, action string, statusCode int, t0 time.Time) {
	observeExplorerRequest(network, action, strconv.Itoa(statusCode), t0)
}

func observeExplorerRequestErr(network, action string, err error, t0 time.Time) {
	observeExplorerRequest(network, action, errorToStatus(err), t0)
}

func observeHTTPRequest(route string, statusCode int) {
	httpRequestCount.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
}

func errorToStatus(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	status := "unknown_error"
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			status = "timeout"
		} else {
			status = "connection_refused"
		}
	}
	return status
}
