package pipeline

import (
	"testing"
	"time"

	telemetry "gasmon/internal/telemetry/domain"
)

func TestDeduplicatorDropsSameWindowRepeats(t *testing.T) {
	clock := newFakeClock()
	dedup := NewDeduplicator(300*time.Second, clock)

	input := []telemetry.Event{
		{LocationID: "A", EventID: "1", Value: 10},
		{LocationID: "A", EventID: "1", Value: 10},
		{LocationID: "B", EventID: "2", Value: 20},
	}
	forwarded := collect(dedup.Handle(sequenceOf(clock, stepsFor(input))))

	if len(forwarded) != 2 {
		t.Fatalf("expected 2 forwarded events, got %d", len(forwarded))
	}
	if forwarded[0].EventID != "1" || forwarded[1].EventID != "2" {
		t.Fatalf("unexpected forwarded events: %v", forwarded)
	}
	if dedup.DuplicatesSkipped() != 1 {
		t.Fatalf("expected 1 duplicate skipped, got %d", dedup.DuplicatesSkipped())
	}
}

func TestDeduplicatorStillDropsLateInWindow(t *testing.T) {
	clock := newFakeClock()
	dedup := NewDeduplicator(300*time.Second, clock)

	// Same id at second 1 and second 299 of the window: still a duplicate.
	steps := []step{
		{event: telemetry.Event{EventID: "1"}, advance: 298 * time.Second},
		{event: telemetry.Event{EventID: "1"}},
	}
	forwarded := collect(dedup.Handle(sequenceOf(clock, steps)))

	if len(forwarded) != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", len(forwarded))
	}
	if dedup.DuplicatesSkipped() != 1 {
		t.Fatalf("expected 1 duplicate skipped, got %d", dedup.DuplicatesSkipped())
	}
}

func TestDeduplicatorForgetsAcrossWindows(t *testing.T) {
	clock := newFakeClock()
	dedup := NewDeduplicator(300*time.Second, clock)

	steps := []step{
		{event: telemetry.Event{EventID: "1"}, advance: 300 * time.Second},
		{event: telemetry.Event{EventID: "1"}},
	}
	forwarded := collect(dedup.Handle(sequenceOf(clock, steps)))

	if len(forwarded) != 2 {
		t.Fatalf("expected both sightings forwarded across windows, got %d", len(forwarded))
	}
	if dedup.DuplicatesSkipped() != 0 {
		t.Fatalf("expected no duplicates across windows, got %d", dedup.DuplicatesSkipped())
	}
}

func TestDeduplicatorResetsOnThePopulatingItem(t *testing.T) {
	clock := newFakeClock()
	dedup := NewDeduplicator(300*time.Second, clock)

	// The reset happens on the same pulled item that populates the new
	// window, so a repeat right after the reset is a duplicate again.
	steps := []step{
		{event: telemetry.Event{EventID: "1"}, advance: 300 * time.Second},
		{event: telemetry.Event{EventID: "1"}},
		{event: telemetry.Event{EventID: "1"}},
	}
	forwarded := collect(dedup.Handle(sequenceOf(clock, steps)))

	if len(forwarded) != 2 {
		t.Fatalf("expected 2 forwarded events, got %d", len(forwarded))
	}
	if dedup.DuplicatesSkipped() != 1 {
		t.Fatalf("expected 1 duplicate in the new window, got %d", dedup.DuplicatesSkipped())
	}
}
