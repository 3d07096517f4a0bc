package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey string

const (
	routeLabelKey ctxKey = "metrics_route"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuition_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuition_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tuition_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tuition_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})

	liveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tuition_live_subscriptions",
		Help: "Number of open chat thread subscriptions.",
	})

	liveSnapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuition_live_snapshots_total",
		Help: "Chat thread snapshots delivered to subscribers, by outcome.",
	}, []string{"outcome"})

	feedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuition_feed_events_total",
		Help: "Change notifications seen on the live feed.",
	}, []string{"feed", "direction"})

	noteDownloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tuition_note_downloads_total",
		Help: "Note downloads recorded before redirecting to the drive link.",
	})

	roleLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tuition_role_lookups_total",
		Help: "Admin role resolutions, by outcome.",
	}, []string{"outcome"})
)

// Middleware records request metrics and enriches the context with labels for downstream instrumentation.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routePattern(r)
			ctx := context.WithValue(r.Context(), routeLabelKey, route)

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			// chi fills in the full pattern only once routing has completed.
			route = routePattern(r)
			status := ww.Status()
			method := r.Method
			duration := time.Since(start).Seconds()
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(method, route).Inc()
			httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration)
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(method, route, statusCode).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDBLatency records database latency for a given operation, associating it with request labels when available.
func ObserveDBLatency(ctx context.Context, operation string, start time.Time) {
	route := routeFromContext(ctx)
	dbLatency.WithLabelValues(operation, route).Observe(time.Since(start).Seconds())
}

// SubscriptionOpened and SubscriptionClosed track the live subscription gauge.
func SubscriptionOpened() { liveSubscriptions.Inc() }

func SubscriptionClosed() { liveSubscriptions.Dec() }

// SnapshotDelivered counts a snapshot pushed to a subscriber; failed lookups
// are counted with outcome "error".
func SnapshotDelivered(err error) {
	if err != nil {
		liveSnapshots.WithLabelValues("error").Inc()
		return
	}
	liveSnapshots.WithLabelValues("ok").Inc()
}

// FeedEvent counts a published or received change notification.
func FeedEvent(feed, direction string) {
	feedEvents.WithLabelValues(feed, direction).Inc()
}

func NoteDownloaded() { noteDownloads.Inc() }

// RoleLookup counts role resolutions; outcome is "admin", "member" or "error".
func RoleLookup(outcome string) {
	roleLookups.WithLabelValues(outcome).Inc()
}

func routeFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(routeLabelKey).(string); ok && route != "" {
		return route
	}
	return "unknown"
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
