package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "gasmon_"

var (
	registerOnce sync.Once

	eventsReceived   prometheus.Counter
	malformedSkipped prometheus.Counter
	eventsProcessed  prometheus.Counter
	duplicatesTotal  prometheus.Counter
	dedupWindowReset prometheus.Counter
	windowsClosed    prometheus.Counter
	accumulatedSize  *prometheus.GaugeVec
	pollLatency      prometheus.Histogram
)

// Init registers run metrics. Safe to call more than once.
func Init(logger *log.Logger) {
	registerOnce.Do(func() {
		eventsReceived = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_received_total",
				Help: "Total decoded events delivered by the receiver",
			},
		)
		malformedSkipped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "malformed_messages_total",
				Help: "Total queue messages skipped as malformed",
			},
		)
		eventsProcessed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_processed_total",
				Help: "Total events forwarded by the duration-bounded source",
			},
		)
		duplicatesTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "duplicate_events_total",
				Help: "Total events dropped as duplicates within a dedup window",
			},
		)
		dedupWindowReset = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "dedup_window_resets_total",
				Help: "Total dedup window resets",
			},
		)
		windowsClosed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "average_windows_closed_total",
				Help: "Total averaging windows closed",
			},
		)
		accumulatedSize = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "location_accumulator_values",
				Help: "Values accumulated per location (grows for the run's lifetime)",
			},
			[]string{"location"},
		)
		pollLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "queue_poll_latency_seconds",
				Help:    "Queue receive latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		for _, collector := range []prometheus.Collector{
			eventsReceived,
			malformedSkipped,
			eventsProcessed,
			duplicatesTotal,
			dedupWindowReset,
			windowsClosed,
			accumulatedSize,
			pollLatency,
		} {
			if err := prometheus.Register(collector); err != nil {
				if logger != nil {
					logger.Printf("metrics register error: %v", err)
				}
			}
		}
	})
}

// IncEventsReceived counts a decoded event handed to the pipeline.
func IncEventsReceived() {
	if eventsReceived != nil {
		eventsReceived.Inc()
	}
}

// IncMalformedSkipped counts a queue message dropped before the pipeline.
func IncMalformedSkipped() {
	if malformedSkipped != nil {
		malformedSkipped.Inc()
	}
}

// IncEventsProcessed counts an event forwarded by the source stage.
func IncEventsProcessed() {
	if eventsProcessed != nil {
		eventsProcessed.Inc()
	}
}

// IncDuplicateSkipped counts an event dropped by the deduplicator.
func IncDuplicateSkipped() {
	if duplicatesTotal != nil {
		duplicatesTotal.Inc()
	}
}

// IncDedupWindowReset counts a dedup window reset.
func IncDedupWindowReset() {
	if dedupWindowReset != nil {
		dedupWindowReset.Inc()
	}
}

// IncWindowClosed counts a closed averaging window.
func IncWindowClosed() {
	if windowsClosed != nil {
		windowsClosed.Inc()
	}
}

// SetLocationAccumulatorSize reports accumulator growth for a location.
func SetLocationAccumulatorSize(locationID string, size int) {
	if accumulatedSize != nil {
		accumulatedSize.WithLabelValues(locationID).Set(float64(size))
	}
}

// ObservePollLatency records one queue receive round-trip.
func ObservePollLatency(elapsed time.Duration) {
	if pollLatency != nil {
		pollLatency.Observe(elapsed.Seconds())
	}
}
