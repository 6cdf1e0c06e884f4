package pipeline

import (
	"iter"
	"time"

	"gasmon/internal/observability/metrics"
	telemetry "gasmon/internal/telemetry/domain"
)

// Deduplicator drops events whose id was already seen within the current
// window. The window is periodic-reset, not sliding: the whole seen-id set
// clears when the window elapses, so an id seen at second 1 of a 300 second
// window is still a duplicate at second 299 but eligible again at 301.
type Deduplicator struct {
	window      time.Duration
	clock       Clock
	seen        map[string]struct{}
	windowStart time.Time
	duplicates  int64
}

// NewDeduplicator constructs a deduplicator with the given reset window.
// The first window opens at construction time.
func NewDeduplicator(window time.Duration, clock Clock) *Deduplicator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Deduplicator{
		window:      window,
		clock:       clock,
		seen:        make(map[string]struct{}),
		windowStart: clock.Now(),
	}
}

// Handle forwards first sightings and drops same-window repeats.
// The reset check runs before the membership test, so a reset can happen on
// the same pulled item that populates the new window.
func (d *Deduplicator) Handle(events iter.Seq[telemetry.Event]) iter.Seq[telemetry.Event] {
	return func(yield func(telemetry.Event) bool) {
		for event := range events {
			now := d.clock.Now()
			if now.Sub(d.windowStart) >= d.window {
				d.seen = make(map[string]struct{})
				d.windowStart = now
				metrics.IncDedupWindowReset()
			}
			if _, ok := d.seen[event.EventID]; ok {
				d.duplicates++
				metrics.IncDuplicateSkipped()
				continue
			}
			d.seen[event.EventID] = struct{}{}
			if !yield(event) {
				return
			}
		}
	}
}

// DuplicatesSkipped reports how many events were dropped as duplicates.
// Monotonic for the run; read after the stream is drained.
func (d *Deduplicator) DuplicatesSkipped() int64 {
	return d.duplicates
}
