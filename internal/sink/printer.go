// Package sink contains the terminal consumers of the pipeline: the console
// printer that drives iteration, and the end-of-run report writers.
package sink

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	telemetry "gasmon/internal/telemetry/domain"
)

// EventObserver is called for each surviving event, on the pipeline
// goroutine, after the event was printed.
type EventObserver func(telemetry.Event)

// Printer drains the composed stream, printing every event that survived
// all upstream stages, in arrival order, exactly once.
type Printer struct {
	out       io.Writer
	observers []EventObserver
}

// PrinterOption configures the printer.
type PrinterOption func(*Printer)

// WithEventObserver attaches a per-event hook, e.g. the live surface
// snapshot writer.
func WithEventObserver(observer EventObserver) PrinterOption {
	return func(p *Printer) {
		if observer != nil {
			p.observers = append(p.observers, observer)
		}
	}
}

// NewPrinter constructs a printer sink writing to out.
func NewPrinter(out io.Writer, opts ...PrinterOption) (*Printer, error) {
	if out == nil {
		return nil, errors.New("sink: nil output writer")
	}
	p := &Printer{out: out}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Drain iterates the stream to completion.
func (p *Printer) Drain(events iter.Seq[telemetry.Event]) error {
	for event := range events {
		if _, err := fmt.Fprintf(p.out, "event location=%s id=%s value=%g at=%s\n",
			event.LocationID, event.EventID, event.Value, event.At().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("sink: print event: %w", err)
		}
		for _, observer := range p.observers {
			observer(event)
		}
	}
	return nil
}
