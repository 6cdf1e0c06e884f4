// Package analytics aggregates pipeline events per sensor location.
package analytics

import (
	"errors"
	"iter"

	"github.com/montanaflynn/stats"

	locations "gasmon/internal/locations/domain"
	"gasmon/internal/observability/metrics"
	telemetry "gasmon/internal/telemetry/domain"
)

// LocationAggregator joins each event to its location by exact id and keeps
// a per-location list of observed values. The join is best-effort, not a
// filter: an event with an unknown location id is forwarded untouched.
//
// Accumulators grow for the run's lifetime with no eviction. Runs are
// duration-bounded, so growth is left uncapped; the per-location gauge in
// the metrics package makes it observable.
//
// Mutated only by the pipeline goroutine. Readers on other goroutines must
// wait for the drain to complete.
type LocationAggregator struct {
	directory *locations.Directory
	values    map[string][]float64
}

// NewLocationAggregator constructs an aggregator over the given directory.
func NewLocationAggregator(directory *locations.Directory) (*LocationAggregator, error) {
	if directory == nil {
		return nil, errors.New("analytics: nil directory")
	}
	return &LocationAggregator{
		directory: directory,
		values:    make(map[string][]float64),
	}, nil
}

// Handle accumulates matched events and forwards every event unchanged.
func (a *LocationAggregator) Handle(events iter.Seq[telemetry.Event]) iter.Seq[telemetry.Event] {
	return func(yield func(telemetry.Event) bool) {
		for event := range events {
			if location, ok := a.directory.FindByID(event.LocationID); ok {
				a.values[location.ID] = append(a.values[location.ID], event.Value)
				metrics.SetLocationAccumulatorSize(location.ID, len(a.values[location.ID]))
			}
			if !yield(event) {
				return
			}
		}
	}
}

// AverageFor returns the arithmetic mean of the values accumulated for a
// location, or 0 when nothing was accumulated.
func (a *LocationAggregator) AverageFor(locationID string) float64 {
	accumulated := a.values[locationID]
	if len(accumulated) == 0 {
		return 0
	}
	mean, err := stats.Mean(accumulated)
	if err != nil {
		return 0
	}
	return mean
}

// ReportedLocations returns the locations with at least one accumulated
// value, in directory order.
func (a *LocationAggregator) ReportedLocations() []locations.Location {
	var reported []locations.Location
	for _, location := range a.directory.All() {
		if len(a.values[location.ID]) > 0 {
			reported = append(reported, location)
		}
	}
	return reported
}
