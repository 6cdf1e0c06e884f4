// Package pipeline contains the stream-transformation stages that sensor
// events pass through, and the combinators that chain them.
//
// Stages operate on lazy iter.Seq sequences: no stage does work except in
// response to a pull from downstream, and each stage consumes at most one
// upstream item per item it emits or drops. Nothing flows until a Sink
// drains the composed sequence.
package pipeline

import (
	"iter"

	telemetry "gasmon/internal/telemetry/domain"
)

// Stage transforms a lazy stream of events into another lazy stream.
type Stage interface {
	Handle(events iter.Seq[telemetry.Event]) iter.Seq[telemetry.Event]
}

// Sink drains a fully-composed stream to completion, performing a terminal
// side effect per event. Attaching a sink is what triggers execution.
type Sink interface {
	Drain(events iter.Seq[telemetry.Event]) error
}

// Compose chains two stages: the second consumes the first's output.
// Composition is associative; both groupings describe the same linear order.
func Compose(first, second Stage) Stage {
	return composed{first: first, second: second}
}

// Chain composes stages left to right into a single stage.
func Chain(stages ...Stage) Stage {
	if len(stages) == 0 {
		return passthrough{}
	}
	chained := stages[0]
	for _, stage := range stages[1:] {
		chained = Compose(chained, stage)
	}
	return chained
}

// Run feeds the source sequence through the stage and drains it into the
// sink, driving the whole pipeline on the calling goroutine.
func Run(stage Stage, sink Sink, events iter.Seq[telemetry.Event]) error {
	return sink.Drain(stage.Handle(events))
}

type composed struct {
	first  Stage
	second Stage
}

func (c composed) Handle(events iter.Seq[telemetry.Event]) iter.Seq[telemetry.Event] {
	return c.second.Handle(c.first.Handle(events))
}

type passthrough struct{}

func (passthrough) Handle(events iter.Seq[telemetry.Event]) iter.Seq[telemetry.Event] {
	return events
}
