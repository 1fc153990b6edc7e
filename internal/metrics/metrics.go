package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event stream metrics
	eventsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubdeck_events_applied_total",
		Help: "State change events applied to the store",
	}, []string{"domain"})

	eventsDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubdeck_events_discarded_total",
		Help: "State change events dropped for entities outside the watch set",
	})

	streamConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hubdeck_stream_connected",
		Help: "Whether the event stream is connected (1) or down (0)",
	})

	streamReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubdeck_stream_reconnects_total",
		Help: "Reconnect attempts against the event stream",
	})

	// Dashboard metrics
	redrawsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubdeck_redraws_total",
		Help: "Dashboard frames rendered",
	})

	redrawDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hubdeck_redraw_duration_seconds",
		Help:    "Time spent rendering one dashboard frame",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to ~1.6s
	})

	watchedEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hubdeck_watched_entities",
		Help: "Entities in the active watch set",
	})

	templateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubdeck_template_errors_total",
		Help: "Template renders that produced an error placeholder",
	})

	// History metrics
	historyFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hubdeck_history_fetch_duration_seconds",
		Help:    "Time spent resolving one history series",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
	}, []string{"source"})

	historyFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubdeck_history_fetch_errors_total",
		Help: "History fetches that failed against the hub",
	}, []string{"error_type"})

	// Service call metrics
	serviceCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubdeck_service_calls_total",
		Help: "Service calls issued through the hub",
	}, []string{"domain", "result"})
)

// IncrementEventApplied counts one state change accepted into the store.
func IncrementEventApplied(domain string) {
	eventsAppliedTotal.WithLabelValues(domain).Inc()
}

// IncrementEventDiscarded counts one state change outside the watch set.
func IncrementEventDiscarded() {
	eventsDiscardedTotal.Inc()
}

// SetStreamConnected flags the event stream as up or down.
func SetStreamConnected(up bool) {
	if up {
		streamConnected.Set(1)
	} else {
		streamConnected.Set(0)
	}
}

// IncrementStreamReconnect counts one reconnect attempt.
func IncrementStreamReconnect() {
	streamReconnectsTotal.Inc()
}

// RecordRedraw records one rendered frame and its duration in seconds.
func RecordRedraw(seconds float64) {
	redrawsTotal.Inc()
	redrawDuration.Observe(seconds)
}

// SetWatchedEntities sets the size of the active watch set.
func SetWatchedEntities(count int) {
	watchedEntities.Set(float64(count))
}

// IncrementTemplateError counts one template render error.
func IncrementTemplateError() {
	templateErrorsTotal.Inc()
}

// RecordHistoryFetch records one resolved history series and where it
// came from ("hub", "cache", "recorder" or "empty").
func RecordHistoryFetch(source string, seconds float64) {
	historyFetchDuration.WithLabelValues(source).Observe(seconds)
}

// IncrementHistoryFetchError counts one failed hub history request.
func IncrementHistoryFetchError(errorType string) {
	historyFetchErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncrementServiceCall counts one service call and its outcome.
func IncrementServiceCall(domain string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	serviceCallsTotal.WithLabelValues(domain, result).Inc()
}
