package telemetry

import "time"

// Event is a single reading produced by a gas sensor.
// Events are constructed by the receiver and flow through the pipeline
// read-only; no stage mutates or retains them beyond its window state.
type Event struct {
	LocationID string
	EventID    string
	Value      float64
	Timestamp  int64
}

// At returns the producer-side wall-clock time of the reading.
func (e Event) At() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}
