package sink

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"gasmon/internal/analytics"
	telemetry "gasmon/internal/telemetry/domain"
)

const defaultSnapshotEvery = 25

// SurfacePoint is one (x, y, average) sample for the external 3-D plotter.
type SurfacePoint struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	AverageValue float64 `json:"averageValue"`
}

type surfaceSnapshot struct {
	At     time.Time      `json:"at"`
	Points []SurfacePoint `json:"points"`
}

// SurfaceWriter feeds the external 3-D visualization: every N observed
// events it writes a JSON-lines snapshot of the per-location averages.
// It reads the aggregator only from the printer's per-event callback, on
// the pipeline goroutine.
type SurfaceWriter struct {
	enc        *json.Encoder
	aggregator *analytics.LocationAggregator
	every      int
	observed   int
}

// SurfaceOption configures the writer.
type SurfaceOption func(*SurfaceWriter)

// WithSnapshotEvery overrides how many events pass between snapshots.
func WithSnapshotEvery(every int) SurfaceOption {
	return func(w *SurfaceWriter) {
		if every > 0 {
			w.every = every
		}
	}
}

// NewSurfaceWriter constructs a surface snapshot writer.
func NewSurfaceWriter(out io.Writer, aggregator *analytics.LocationAggregator, opts ...SurfaceOption) (*SurfaceWriter, error) {
	if out == nil {
		return nil, errors.New("sink: nil surface output")
	}
	if aggregator == nil {
		return nil, errors.New("sink: nil aggregator")
	}
	w := &SurfaceWriter{
		enc:        json.NewEncoder(out),
		aggregator: aggregator,
		every:      defaultSnapshotEvery,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Observe is the printer hook; it snapshots every N events.
func (w *SurfaceWriter) Observe(telemetry.Event) {
	w.observed++
	if w.observed%w.every == 0 {
		_ = w.snapshot(time.Now())
	}
}

// Flush writes a final snapshot after the stream ended.
func (w *SurfaceWriter) Flush(at time.Time) error {
	return w.snapshot(at)
}

func (w *SurfaceWriter) snapshot(at time.Time) error {
	reported := w.aggregator.ReportedLocations()
	points := make([]SurfacePoint, 0, len(reported))
	for _, location := range reported {
		points = append(points, SurfacePoint{
			X:            location.X,
			Y:            location.Y,
			AverageValue: w.aggregator.AverageFor(location.ID),
		})
	}
	return w.enc.Encode(surfaceSnapshot{At: at, Points: points})
}
