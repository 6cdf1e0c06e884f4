package analytics

import (
	"iter"
	"testing"

	locations "gasmon/internal/locations/domain"
	telemetry "gasmon/internal/telemetry/domain"
)

func testDirectory(t *testing.T) *locations.Directory {
	t.Helper()
	directory, err := locations.NewDirectory([]locations.Location{
		{X: 1, Y: 2, ID: "A"},
		{X: 3, Y: 4, ID: "B"},
	})
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	return directory
}

func sequenceOf(events []telemetry.Event) iter.Seq[telemetry.Event] {
	return func(yield func(telemetry.Event) bool) {
		for _, event := range events {
			if !yield(event) {
				return
			}
		}
	}
}

func drain(t *testing.T, aggregator *LocationAggregator, events []telemetry.Event) []telemetry.Event {
	t.Helper()
	var out []telemetry.Event
	for event := range aggregator.Handle(sequenceOf(events)) {
		out = append(out, event)
	}
	return out
}

func TestLocationAggregatorAverages(t *testing.T) {
	aggregator, err := NewLocationAggregator(testDirectory(t))
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	drain(t, aggregator, []telemetry.Event{
		{LocationID: "A", EventID: "1", Value: 10},
		{LocationID: "A", EventID: "2", Value: 20},
		{LocationID: "B", EventID: "3", Value: 5},
	})

	if got := aggregator.AverageFor("A"); got != 15 {
		t.Fatalf("expected average 15 for A, got %g", got)
	}
	if got := aggregator.AverageFor("B"); got != 5 {
		t.Fatalf("expected average 5 for B, got %g", got)
	}
}

func TestLocationAggregatorEmptyAccumulatorIsZero(t *testing.T) {
	aggregator, err := NewLocationAggregator(testDirectory(t))
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	if got := aggregator.AverageFor("A"); got != 0 {
		t.Fatalf("expected 0 for empty accumulator, got %g", got)
	}
	if got := aggregator.AverageFor("unknown"); got != 0 {
		t.Fatalf("expected 0 for unknown location, got %g", got)
	}
}

func TestLocationAggregatorMissedJoinDoesNotTruncate(t *testing.T) {
	aggregator, err := NewLocationAggregator(testDirectory(t))
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	forwarded := drain(t, aggregator, []telemetry.Event{
		{LocationID: "A", EventID: "1", Value: 10},
		{LocationID: "C", EventID: "2", Value: 99},
		{LocationID: "B", EventID: "3", Value: 5},
	})

	if len(forwarded) != 3 {
		t.Fatalf("join must not filter the stream, got %d events", len(forwarded))
	}
	reported := aggregator.ReportedLocations()
	if len(reported) != 2 {
		t.Fatalf("expected 2 reported locations, got %d", len(reported))
	}
	for _, location := range reported {
		if location.ID == "C" {
			t.Fatalf("unregistered location must not be reported")
		}
	}
}

func TestLocationAggregatorKeepsDirectoryOrder(t *testing.T) {
	aggregator, err := NewLocationAggregator(testDirectory(t))
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	// B observed before A; reporting order still follows the directory.
	drain(t, aggregator, []telemetry.Event{
		{LocationID: "B", EventID: "1", Value: 5},
		{LocationID: "A", EventID: "2", Value: 10},
	})

	reported := aggregator.ReportedLocations()
	if len(reported) != 2 || reported[0].ID != "A" || reported[1].ID != "B" {
		t.Fatalf("unexpected reporting order: %v", reported)
	}
}
