package pipeline

import (
	"iter"
	"time"

	"gasmon/internal/observability/metrics"
	telemetry "gasmon/internal/telemetry/domain"
)

// WindowAverage is one closed averaging window.
type WindowAverage struct {
	Value    float64
	ClosedAt time.Time
}

// WindowedAverager accumulates a running sum and count and records the
// average each time a wall-clock window closes. It is a side-observing
// passthrough: every event is forwarded unchanged.
//
// The recorded-averages history grows for the run's lifetime; runs are
// duration-bounded so it is left uncapped.
type WindowedAverager struct {
	window      time.Duration
	clock       Clock
	total       float64
	count       int64
	windowStart time.Time
	averages    []WindowAverage
}

// NewWindowedAverager constructs an averager with the given window.
// The first window opens at construction time.
func NewWindowedAverager(window time.Duration, clock Clock) *WindowedAverager {
	if clock == nil {
		clock = SystemClock{}
	}
	return &WindowedAverager{
		window:      window,
		clock:       clock,
		windowStart: clock.Now(),
	}
}

// Handle accumulates each value and forwards the event. The close check
// runs only after a value was just added, so a closing window is never
// empty. A partial window left at end of stream is discarded.
func (a *WindowedAverager) Handle(events iter.Seq[telemetry.Event]) iter.Seq[telemetry.Event] {
	return func(yield func(telemetry.Event) bool) {
		for event := range events {
			a.total += event.Value
			a.count++
			now := a.clock.Now()
			if now.Sub(a.windowStart) >= a.window {
				a.averages = append(a.averages, WindowAverage{
					Value:    a.total / float64(a.count),
					ClosedAt: now,
				})
				a.total = 0
				a.count = 0
				a.windowStart = now
				metrics.IncWindowClosed()
			}
			if !yield(event) {
				return
			}
		}
	}
}

// Averages returns the closed windows in emission order. Read after the
// stream is drained, or from the sink's per-event callback on the same
// goroutine.
func (a *WindowedAverager) Averages() []WindowAverage {
	return a.averages
}
