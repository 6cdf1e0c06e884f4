package pipeline

import (
	"iter"
	"time"

	"gasmon/internal/observability/metrics"
	telemetry "gasmon/internal/telemetry/domain"
)

// FixedDurationSource forwards events until a fixed wall-clock budget
// elapses, then ends the stream without consuming further upstream items.
// The deadline is computed on the first pull; the check runs before
// forwarding, so an event pulled after the deadline is never emitted.
type FixedDurationSource struct {
	runDuration     time.Duration
	clock           Clock
	eventsProcessed int64
}

// NewFixedDurationSource constructs a source stage with the given budget.
// A non-positive duration yields a stage that forwards nothing.
func NewFixedDurationSource(runDuration time.Duration, clock Clock) *FixedDurationSource {
	if clock == nil {
		clock = SystemClock{}
	}
	return &FixedDurationSource{runDuration: runDuration, clock: clock}
}

// Handle cuts the upstream sequence off at the deadline.
func (s *FixedDurationSource) Handle(events iter.Seq[telemetry.Event]) iter.Seq[telemetry.Event] {
	return func(yield func(telemetry.Event) bool) {
		deadline := s.clock.Now().Add(s.runDuration)
		for event := range events {
			if !s.clock.Now().Before(deadline) {
				return
			}
			s.eventsProcessed++
			metrics.IncEventsProcessed()
			if !yield(event) {
				return
			}
		}
	}
}

// EventsProcessed reports the number of events forwarded. Read by the
// driving caller after the stream is fully drained.
func (s *FixedDurationSource) EventsProcessed() int64 {
	return s.eventsProcessed
}
